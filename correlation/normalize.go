// Package correlation turns the raw actor log stream into a threat topology.
//
// Every function here is pure: it reads the snapshot it is handed and keeps
// nothing between calls, so callers may invoke it from any goroutine.
package correlation

import (
	"regexp"
	"strconv"
	"strings"

	"vpuppets-console/models"
)

// EphemeralPortFloor separates client-side ephemeral ports from service
// ports in the generic "from A:p1 to B:p2" shape. Empirical, not IANA.
const EphemeralPortFloor = 30000

// Signal is what a single log line says about an attacker.
// Empty fields mean the line carried no such information.
type Signal struct {
	AttackerIP string
	DestPort   string
	Protocol   string
}

// Empty reports whether nothing attributable was extracted
func (s Signal) Empty() bool {
	return s.AttackerIP == "" && s.DestPort == ""
}

var (
	// Sentinel alert: "detected from 1.2.3.4:51234 -> :22"
	sentinelRe = regexp.MustCompile(`detected from \d{1,3}(?:\.\d{1,3}){3}:(\d+)\s*->\s*:(\d+)`)
	// netfilter: "... DPT=445 ..."
	kernelRe = regexp.MustCompile(`DPT=(\d+)`)
	// "from host:p1 to host:p2" or "from host:p1 -> :p2"
	flowRe = regexp.MustCompile(`from\s+([\w.\-]+):(\d+)\s*(?:to|->)\s*([\w.\-]*):(\d+)`)
	// trap relay: "... -> :2222"
	relayRe = regexp.MustCompile(`->\s*:(\d+)`)
	// last resort: "to host:port", with "to" as a whole word
	toRe = regexp.MustCompile(`\bto\s+[\w.\-]+:(\d+)`)

	ipv4Re = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)
)

// Header artifacts of the raw Sentinel table output
const (
	artifactSource  = "Address"
	artifactMessage = "Address:Port"
)

// ExtractDestPort runs the destination port matchers in precedence order
// and returns the first hit, or "" when none matches.
func ExtractDestPort(msg string) string {
	if m := sentinelRe.FindStringSubmatch(msg); m != nil {
		return m[2]
	}
	if m := kernelRe.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if m := flowRe.FindStringSubmatch(msg); m != nil {
		return pickFlowPort(m[2], m[4])
	}
	if m := relayRe.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if m := toRe.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return ""
}

// pickFlowPort decides which side of a flow is the service. When the
// destination looks ephemeral and the source does not, the line was
// logged from the service's point of view and the roles are swapped.
func pickFlowPort(p1, p2 string) string {
	n1, err1 := strconv.Atoi(p1)
	n2, err2 := strconv.Atoi(p2)
	if err1 == nil && err2 == nil && n2 > EphemeralPortFloor && n1 < EphemeralPortFloor {
		return p1
	}
	return p2
}

// Normalize extracts the attacker signal of one entry. selfWan and selfLan
// are the actor's own addresses; they never qualify as attackers.
func Normalize(entry models.LogEntry, selfWan, selfLan string) Signal {
	source := strings.TrimSpace(entry.SourceIP)
	if source == artifactSource || strings.Contains(entry.Message, artifactMessage) {
		return Signal{}
	}

	sig := Signal{
		AttackerIP: source,
		DestPort:   ExtractDestPort(entry.Message),
		Protocol:   entry.Process,
	}

	if sig.AttackerIP == "" && entry.Level.IsAlert() {
		if m := ipv4Re.FindStringSubmatch(entry.Message); m != nil {
			sig.AttackerIP = m[1]
		}
	}
	if isSelf(sig.AttackerIP, selfWan, selfLan) {
		sig.AttackerIP = ""
	}
	return sig
}

func isSelf(ip, selfWan, selfLan string) bool {
	switch ip {
	case "":
		return false
	case "127.0.0.1", "0.0.0.0":
		return true
	}
	return (selfWan != "" && ip == selfWan) || (selfLan != "" && ip == selfLan)
}
