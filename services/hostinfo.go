package services

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// HostStats describes the machine the console runs on
type HostStats struct {
	Uptime      string `json:"uptime"`
	MemoryUsage int    `json:"memory_usage"` // percent
	Load1       string `json:"load_1m"`
	Goroutines  int    `json:"goroutines"`
}

// HostInfo reads host statistics from procfs. Outside Linux every value
// except the goroutine count is empty.
type HostInfo struct {
	procDir string
}

func NewHostInfo() *HostInfo {
	return &HostInfo{procDir: "/proc"}
}

func (h *HostInfo) Stats() HostStats {
	stats := HostStats{Uptime: "Unknown", Goroutines: runtime.NumGoroutine()}
	if runtime.GOOS != "linux" {
		return stats
	}
	if data, err := os.ReadFile(h.procDir + "/uptime"); err == nil {
		if d, ok := parseUptime(string(data)); ok {
			stats.Uptime = formatUptime(d)
		}
	}
	if data, err := os.ReadFile(h.procDir + "/meminfo"); err == nil {
		stats.MemoryUsage = parseMemUsage(string(data))
	}
	if data, err := os.ReadFile(h.procDir + "/loadavg"); err == nil {
		if fields := strings.Fields(string(data)); len(fields) > 0 {
			stats.Load1 = fields[0]
		}
	}
	return stats
}

func parseUptime(data string) (time.Duration, bool) {
	parts := strings.Fields(data)
	if len(parts) < 1 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
}

// parseMemUsage returns used memory as a percentage of MemTotal
func parseMemUsage(data string) int {
	var memTotal, memAvailable uint64
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		val, _ := strconv.ParseUint(fields[1], 10, 64)
		switch fields[0] {
		case "MemTotal:":
			memTotal = val
		case "MemAvailable:":
			memAvailable = val
		}
	}
	if memTotal == 0 || memAvailable > memTotal {
		return 0
	}
	return int(float64(memTotal-memAvailable) / float64(memTotal) * 100)
}
