package models

import "time"

// Direction of a recorded frame
type Direction string

const (
	DirectionInput  Direction = "INPUT"  // from the attacker
	DirectionOutput Direction = "OUTPUT" // from the emulated service
)

// AttackSession is a recorded interactive session
type AttackSession struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	ActorID         string    `gorm:"index" json:"actor_id"`
	AttackerIP      string    `json:"attacker_ip"`
	Protocol        string    `json:"protocol"`
	StartTime       time.Time `json:"start_time"`
	DurationSeconds float64   `json:"duration"`
	Frames          []Frame   `gorm:"foreignKey:SessionID" json:"frames"`
}

// DurationMs is the session length in playback milliseconds
func (s *AttackSession) DurationMs() int64 {
	return int64(s.DurationSeconds*1000 + 0.5)
}

// Frame is one timestamped input or output event of a session
type Frame struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	SessionID string    `gorm:"index;not null" json:"-"`
	Seq       int       `json:"-"`
	TimeMs    int64     `json:"time"`
	Direction Direction `json:"type"`
	Data      string    `json:"data"`
}
