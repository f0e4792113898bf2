package exposure

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"vpuppets-console/models"
)

// ScanCommand is the socket enumeration run on an actor for a live scan
const ScanCommand = "ss -lntup"

// application processes are managed by the platform, not the host OS
var appProcesses = []string{"socat", "vpp-agent", "python"}

var processRe = regexp.MustCompile(`users:\(\("([^"]+)"`)

type socketGroup struct {
	port      int
	tcp, udp  bool
	processes []string
}

// ParseSocketTable turns `ss -lntup` output into live exposure tables.
// Loopback bindings are dropped, a port listening on both TCP and UDP is
// merged into one TCP/UDP row, and lines that do not look like sockets are
// skipped.
func ParseSocketTable(output string, scannedAt time.Time) models.ExposureTables {
	groups := make(map[int]*socketGroup)
	var order []int

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		netid := strings.ToLower(fields[0])
		isTCP := strings.HasPrefix(netid, "tcp")
		isUDP := strings.HasPrefix(netid, "udp")
		if !isTCP && !isUDP {
			continue
		}

		host, port, ok := splitLocal(fields[4])
		if !ok || isLoopback(host) {
			continue
		}

		g, exists := groups[port]
		if !exists {
			g = &socketGroup{port: port}
			groups[port] = g
			order = append(order, port)
		}
		g.tcp = g.tcp || isTCP
		g.udp = g.udp || isUDP
		if len(fields) > 6 {
			if m := processRe.FindStringSubmatch(strings.Join(fields[6:], " ")); m != nil {
				g.processes = append(g.processes, m[1])
			}
		}
	}

	ts := scannedAt
	out := models.ExposureTables{
		System:      []models.PortClaim{},
		Application: []models.PortClaim{},
		Live:        true,
		ScannedAt:   &ts,
	}
	for _, port := range order {
		g := groups[port]
		proto := "TCP"
		switch {
		case g.tcp && g.udp:
			proto = "TCP/UDP"
		case g.udp:
			proto = "UDP"
		}

		if app, proc := classify(g.processes); app {
			claim := models.PortClaim{Port: port, Proto: proto, Service: "Persona", Source: models.SourcePersonaEngine}
			if strings.Contains(proc, "socat") {
				claim.Service = "Tunnel"
				claim.Source = models.SourceTunnel
			}
			out.Application = append(out.Application, claim)
			continue
		}

		service := ServiceName(port)
		if service == "Unknown" && proto == "TCP/UDP" {
			service = "TCP/UDP Service"
		}
		out.System = append(out.System, models.PortClaim{Port: port, Proto: proto, Service: service, Source: models.SourceHostOS})
	}

	sort.SliceStable(out.System, func(i, j int) bool { return out.System[i].Port < out.System[j].Port })
	sort.SliceStable(out.Application, func(i, j int) bool { return out.Application[i].Port < out.Application[j].Port })
	return out
}

// splitLocal parses "0.0.0.0:22", "[::]:22", "127.0.0.53%lo:53" or "*:68"
func splitLocal(addr string) (string, int, bool) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", 0, false
	}
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, false
	}
	host := strings.Trim(addr[:i], "[]")
	if z := strings.Index(host, "%"); z >= 0 {
		host = host[:z]
	}
	return host, port, true
}

func isLoopback(host string) bool {
	return strings.HasPrefix(host, "127.") || host == "::1" || strings.HasPrefix(host, "::ffff:127.")
}

func classify(processes []string) (bool, string) {
	for _, proc := range processes {
		for _, marker := range appProcesses {
			if strings.Contains(proc, marker) {
				return true, proc
			}
		}
	}
	return false, ""
}
