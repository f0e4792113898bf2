package models

import (
	"strings"
	"time"
)

// Level is the severity of a log entry
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// ParseLevel accepts the four known levels case-insensitively
func ParseLevel(s string) (Level, bool) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelInfo:
		return LevelInfo, true
	case LevelWarning, "WARN":
		return LevelWarning, true
	case LevelError:
		return LevelError, true
	case LevelCritical:
		return LevelCritical, true
	}
	return "", false
}

// IsAlert reports whether the level can produce an attacker record
func (l Level) IsAlert() bool {
	return l == LevelWarning || l == LevelCritical
}

// LogEntry is one observed event. Entries are never updated after insert.
type LogEntry struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	ActorID   string    `gorm:"index" json:"actor_id"`
	ActorName string    `json:"actor_name"`
	Level     Level     `gorm:"index" json:"level"`
	Process   string    `json:"process"`
	Message   string    `json:"message"`
	SourceIP  string    `json:"source_ip,omitempty"`
}
