package models

import "time"

type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// CommandJob is one command issued to an actor. Output is opaque text.
type CommandJob struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	ActorID     string     `gorm:"index;not null" json:"actor_id"`
	Command     string     `gorm:"not null" json:"command"`
	Status      JobStatus  `gorm:"index;default:'PENDING'" json:"status"`
	Output      string     `json:"output"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Done reports whether the job reached a terminal state
func (j *CommandJob) Done() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
