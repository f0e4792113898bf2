package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// ActorStatus is the lifecycle state of a managed decoy host
type ActorStatus string

const (
	StatusOnline      ActorStatus = "ONLINE"
	StatusOffline     ActorStatus = "OFFLINE"
	StatusCompromised ActorStatus = "COMPROMISED"
)

// Actor is a honeypot endpoint running the puppet agent
type Actor struct {
	ID              string      `gorm:"primaryKey" json:"id"`
	Name            string      `gorm:"unique;not null" json:"name"`
	WanIP           string      `json:"wan_ip"`
	LanIP           string      `json:"lan_ip"` // empty until a scan reported it
	Status          ActorStatus `gorm:"default:'ONLINE'" json:"status"`
	PersonaID       *uint       `json:"persona_id"`
	Persona         *Persona    `json:"persona,omitempty"`
	SentinelEnabled bool        `gorm:"default:false" json:"sentinel_enabled"`
	LastSeen        time.Time   `json:"last_seen"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Tunnels         []Tunnel    `gorm:"foreignKey:ActorID" json:"tunnels,omitempty"`
}

// Persona is a device identity an actor emulates
type Persona struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"unique;not null" json:"name"`
	OpenPorts string    `json:"open_ports"` // comma separated, e.g. "80,443"
	Banner    string    `json:"banner"`
	Vendor    string    `json:"vendor"`
	CreatedAt time.Time `json:"created_at"`
}

// Ports returns the declared open ports, sorted and de-duplicated.
// Entries that are not valid port numbers are skipped.
func (p *Persona) Ports() []int {
	if p == nil {
		return nil
	}
	seen := make(map[int]bool)
	var ports []int
	for _, raw := range strings.Split(p.OpenPorts, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 || n > 65535 || seen[n] {
			continue
		}
		seen[n] = true
		ports = append(ports, n)
	}
	sort.Ints(ports)
	return ports
}

// JoinPorts is the inverse of Persona.Ports
func JoinPorts(ports []int) string {
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, ",")
}

// Trap is a catalog entry for a cloud hosted high-interaction honeypot
type Trap struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	ServiceType string `gorm:"not null" json:"service_type"` // e.g. "SSH", "HTTP"
	DefaultPort int    `gorm:"not null" json:"default_port"`
}

// Tunnel is an active local-port to trap forwarding on an actor
type Tunnel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ActorID     string    `gorm:"index;not null" json:"actor_id"`
	TrapID      string    `gorm:"not null" json:"trap_id"`
	LocalPort   int       `gorm:"not null" json:"local_port"`
	ServiceType string    `json:"service_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Watermark is the server-backed per-user "clear view" timestamp
type Watermark struct {
	UserID        string    `gorm:"primaryKey" json:"user_id"`
	ActorID       string    `gorm:"primaryKey" json:"actor_id"`
	DismissedAtMs int64     `gorm:"not null" json:"dismissed_at_ms"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SeedDefaultTraps returns the built-in trap catalog
func SeedDefaultTraps() []Trap {
	return []Trap{
		{ID: "trap-ssh", Name: "Cowrie SSH", ServiceType: "SSH", DefaultPort: 2222},
		{ID: "trap-telnet", Name: "Cowrie Telnet", ServiceType: "Telnet", DefaultPort: 23},
		{ID: "trap-http", Name: "Web Admin Panel", ServiceType: "HTTP", DefaultPort: 8080},
		{ID: "trap-mysql", Name: "MySQL Decoy", ServiceType: "MySQL", DefaultPort: 3306},
		{ID: "trap-redis", Name: "Redis Decoy", ServiceType: "Redis", DefaultPort: 6379},
	}
}
