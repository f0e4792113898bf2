package correlation

import (
	"sort"
	"strings"

	"vpuppets-console/models"
)

// MaxPayloads caps the intercepted command sample
const MaxPayloads = 5

// Result is the threat topology of one actor at one point in time
type Result struct {
	Attackers []models.ThreatRecord
	Payloads  []string
}

// Aggregate recomputes the full threat topology from a log snapshot.
//
// Entries at or before dismissedAtMs are ignored. Entries are walked newest
// first whatever order the producer used, so a record's protocol and port are
// those of the most recent event that carried them. The input slice is not
// modified.
func Aggregate(logs []models.LogEntry, dismissedAtMs int64, selfWan, selfLan string) Result {
	visible := make([]models.LogEntry, 0, len(logs))
	for _, e := range logs {
		if e.Timestamp.UnixMilli() > dismissedAtMs {
			visible = append(visible, e)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].Timestamp.After(visible[j].Timestamp)
	})

	res := Result{
		Attackers: []models.ThreatRecord{},
		Payloads:  []string{},
	}
	index := make(map[string]int)
	seenPayload := make(map[string]bool)

	for _, e := range visible {
		if e.Level.IsAlert() {
			sig := Normalize(e, selfWan, selfLan)
			if sig.AttackerIP != "" {
				if i, ok := index[sig.AttackerIP]; ok {
					rec := &res.Attackers[i]
					rec.Count++
					if rec.Port == "" {
						rec.Port = sig.DestPort
					}
				} else {
					index[sig.AttackerIP] = len(res.Attackers)
					res.Attackers = append(res.Attackers, models.ThreatRecord{
						IP:       sig.AttackerIP,
						Protocol: e.Process,
						Count:    1,
						Port:     sig.DestPort,
					})
				}
			}
		}

		if len(res.Payloads) < MaxPayloads {
			if cmd, ok := InterceptPayload(e.Message); ok && !seenPayload[cmd] {
				seenPayload[cmd] = true
				res.Payloads = append(res.Payloads, cmd)
			}
		}
	}
	return res
}

var payloadMarkers = []string{"cmd:", "Executing"}

// InterceptPayload returns the command carried by a log message, if any.
// Messages mentioning stdin without a marker are kept whole.
func InterceptPayload(msg string) (string, bool) {
	if !strings.Contains(msg, "cmd:") && !strings.Contains(msg, "Executing") && !strings.Contains(msg, "stdin") {
		return "", false
	}

	cmd := strings.TrimSpace(msg)
	for _, marker := range payloadMarkers {
		if i := strings.Index(cmd, marker); i >= 0 {
			cmd = strings.TrimSpace(cmd[i+len(marker):])
			cmd = strings.TrimSpace(strings.TrimPrefix(cmd, ":"))
			break
		}
	}
	if cmd == "" {
		return "", false
	}
	return cmd, true
}
