package models

import "time"

// ThreatRecord is the derived per-attacker aggregate. It is never persisted.
type ThreatRecord struct {
	IP       string `json:"ip"`
	Protocol string `json:"protocol"`
	Count    int    `json:"count"`
	Port     string `json:"port,omitempty"`
}

// ThreatView is what the console renders for one actor
type ThreatView struct {
	ActorID       string            `json:"actor_id"`
	Status        ActorStatus       `json:"status"`
	DismissedAtMs int64             `json:"dismissed_at_ms"`
	Attackers     []ThreatRecord    `json:"attackers"`
	Payloads      []string          `json:"payloads"`
	Countries     map[string]string `json:"countries,omitempty"` // ip -> ISO code
}

// Port claim sources
const (
	SourceHostOS         = "Host OS"
	SourceTunnel         = "Cloud Tunnel"
	SourceTunnelOverride = "Cloud Tunnel (Override)"
	SourcePersonaPrefix  = "Persona: "
	SourcePersonaEngine  = "Persona"
)

// PortClaim is one row of an exposure table
type PortClaim struct {
	Port    int    `json:"port"`
	Proto   string `json:"proto"`
	Service string `json:"service"`
	Source  string `json:"source"`
}

// ExposureTables is the reconciled set of exposed ports
type ExposureTables struct {
	System      []PortClaim `json:"system"`
	Application []PortClaim `json:"application"`
	Live        bool        `json:"live"`
	ScannedAt   *time.Time  `json:"scanned_at,omitempty"`
}
