package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vpuppets-console/models"
)

func TestExtractDestPort(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{"sentinel uses second port", "Sentinel: connection detected from 45.9.1.2:51234 -> :22", "22"},
		{"sentinel wins over DPT", "detected from 45.9.1.2:51234 -> :23 DPT=80", "23"},
		{"kernel DPT", "IN=eth0 OUT= SRC=45.9.1.2 DST=10.0.0.5 PROTO=TCP SPT=40000 DPT=445", "445"},
		{"kernel wins over flow", "from 1.1.1.1:1000 to 2.2.2.2:2000 DPT=3389", "3389"},
		{"flow reports destination", "from 5.6.7.8:9000 to 10.0.0.1:22", "22"},
		{"flow arrow with empty host", "relay from 5.6.7.8:9000 -> :8080", "8080"},
		{"flow swaps ephemeral destination", "accepted from 10.0.0.1:22 to 5.6.7.8:54022", "22"},
		{"flow both ephemeral keeps destination", "from 10.0.0.1:40000 to 5.6.7.8:54022", "54022"},
		{"flow both service keeps destination", "from 10.0.0.1:80 to 5.6.7.8:443", "443"},
		{"flow threshold is exclusive", "from 10.0.0.1:22 to 5.6.7.8:30000", "30000"},
		{"flow hostnames", "from scanner.example.net:9000 to decoy-01:3306", "3306"},
		{"relay suffix", "trap-relay: forwarded -> :2222", "2222"},
		{"to host fallback", "connect to db.internal:5432 refused", "5432"},
		{"to at line start", "to 10.0.0.9:8443 via eth1", "8443"},
		{"to inside proto is not a word", "proto 1.2.3.4:80", ""},
		{"to inside auto is not a word", "auto host:99", ""},
		{"to inside word then real to", "proto tcp to gw.lan:53", "53"},
		{"no match", "kernel: eth0 link up", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDestPort(tt.msg))
		})
	}
}

func TestNormalize(t *testing.T) {
	const wan, lan = "203.0.113.10", "192.168.1.50"

	tests := []struct {
		name  string
		entry models.LogEntry
		want  Signal
	}{
		{
			name:  "structured source ip",
			entry: models.LogEntry{Level: models.LevelWarning, Process: "sshd", SourceIP: "1.2.3.4", Message: "DPT=445"},
			want:  Signal{AttackerIP: "1.2.3.4", DestPort: "445", Protocol: "sshd"},
		},
		{
			name:  "ip scanned from critical message",
			entry: models.LogEntry{Level: models.LevelCritical, Process: "sentinel", Message: "from 5.6.7.8:9000 to 10.0.0.1:22"},
			want:  Signal{AttackerIP: "5.6.7.8", DestPort: "22", Protocol: "sentinel"},
		},
		{
			name:  "info message is not scanned",
			entry: models.LogEntry{Level: models.LevelInfo, Process: "kernel", Message: "from 5.6.7.8:9000 to 10.0.0.1:22"},
			want:  Signal{DestPort: "22", Protocol: "kernel"},
		},
		{
			name:  "error message is not scanned",
			entry: models.LogEntry{Level: models.LevelError, Message: "peer 5.6.7.8 reset"},
			want:  Signal{},
		},
		{
			name:  "loopback rejected",
			entry: models.LogEntry{Level: models.LevelCritical, Message: "probe from 127.0.0.1:5000 to :22"},
			want:  Signal{DestPort: "22"},
		},
		{
			name:  "any address rejected",
			entry: models.LogEntry{Level: models.LevelWarning, Message: "bind 0.0.0.0 failed"},
			want:  Signal{},
		},
		{
			name:  "own wan rejected",
			entry: models.LogEntry{Level: models.LevelCritical, Message: "outbound 203.0.113.10 DPT=53"},
			want:  Signal{DestPort: "53"},
		},
		{
			name:  "own lan rejected",
			entry: models.LogEntry{Level: models.LevelCritical, Message: "heartbeat 192.168.1.50"},
			want:  Signal{},
		},
		{
			name:  "own address as structured source rejected",
			entry: models.LogEntry{Level: models.LevelCritical, SourceIP: wan, Message: "DPT=22"},
			want:  Signal{DestPort: "22"},
		},
		{
			name:  "sentinel header source artifact",
			entry: models.LogEntry{Level: models.LevelCritical, SourceIP: "Address", Message: "DPT=22"},
			want:  Signal{},
		},
		{
			name:  "sentinel header message artifact",
			entry: models.LogEntry{Level: models.LevelCritical, Message: "Local Address:Port Peer 9.9.9.9"},
			want:  Signal{},
		},
		{
			name:  "nothing matches",
			entry: models.LogEntry{Level: models.LevelWarning, Process: "agent", Message: "disk almost full"},
			want:  Signal{Protocol: "agent"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.entry, wan, lan))
		})
	}
}

func TestNormalizeNeverReturnsSelf(t *testing.T) {
	const wan, lan = "198.51.100.7", "10.1.1.1"
	messages := []string{
		"from 198.51.100.7:22 to 5.5.5.5:40000",
		"SRC=10.1.1.1 DPT=22",
		"10.1.1.1 10.1.1.1",
		"detected from 198.51.100.7:1234 -> :22",
	}
	for _, level := range []models.Level{models.LevelWarning, models.LevelCritical} {
		for _, msg := range messages {
			sig := Normalize(models.LogEntry{Level: level, Message: msg}, wan, lan)
			assert.NotEqual(t, wan, sig.AttackerIP, msg)
			assert.NotEqual(t, lan, sig.AttackerIP, msg)
		}
	}
}
