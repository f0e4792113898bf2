package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vpuppets-console/models"
	"vpuppets-console/system"
)

// LocalActorID addresses the console host itself. Its commands run through
// the local executor instead of waiting for an agent.
const LocalActorID = "local"

const localCommandTimeout = 30 * time.Second

// CommandService issues commands to actors and tracks their jobs
type CommandService struct {
	db       *gorm.DB
	executor system.CommandExecutor
	now      func() time.Time
	wg       sync.WaitGroup
}

func NewCommandService(db *gorm.DB, executor system.CommandExecutor) *CommandService {
	return &CommandService{db: db, executor: executor, now: time.Now}
}

// Issue records a PENDING job and returns its id without waiting for it
func (s *CommandService) Issue(ctx context.Context, actorID, command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", ErrEmptyCommand
	}
	if actorID != LocalActorID {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Actor{}).Where("id = ?", actorID).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return "", fmt.Errorf("actor %s: %w", actorID, ErrNotFound)
		}
	}

	job := models.CommandJob{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Command:   command,
		Status:    models.JobPending,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		return "", fmt.Errorf("store command job: %w", err)
	}
	system.Info("Command issued to %s: %s (job %s)", actorID, command, job.ID)

	if actorID == LocalActorID {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runLocal(job)
		}()
	}
	return job.ID, nil
}

func (s *CommandService) runLocal(job models.CommandJob) {
	if err := s.db.Model(&models.CommandJob{}).Where("id = ?", job.ID).Update("status", models.JobRunning).Error; err != nil {
		system.Warn("Failed to mark job %s running: %v", job.ID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), localCommandTimeout)
	defer cancel()

	fields := strings.Fields(job.Command)
	out, err := s.executor.Execute(ctx, fields[0], fields[1:]...)
	failed := err != nil
	if failed {
		out = strings.TrimSpace(out + "\n" + err.Error())
	}
	if err := s.Complete(context.Background(), job.ID, out, failed); err != nil {
		system.Warn("Failed to complete local job %s: %v", job.ID, err)
	}
}

// Result returns the current state of a job
func (s *CommandService) Result(ctx context.Context, jobID string) (*models.CommandJob, error) {
	var job models.CommandJob
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", jobID, ErrJobNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Pending hands the PENDING jobs of an actor to its agent, oldest first,
// and marks them RUNNING
func (s *CommandService) Pending(ctx context.Context, actorID string) ([]models.CommandJob, error) {
	var jobs []models.CommandJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("actor_id = ? AND status = ?", actorID, models.JobPending).
			Order("created_at").
			Find(&jobs).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}
		ids := make([]string, len(jobs))
		for i := range jobs {
			ids[i] = jobs[i].ID
			jobs[i].Status = models.JobRunning
		}
		return tx.Model(&models.CommandJob{}).Where("id IN ?", ids).Update("status", models.JobRunning).Error
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Complete stores the output of a job. Completing a finished job again is
// ignored.
func (s *CommandService) Complete(ctx context.Context, jobID, output string, failed bool) error {
	job, err := s.Result(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Done() {
		return nil
	}

	status := models.JobCompleted
	if failed {
		status = models.JobFailed
	}
	now := s.now()
	err = s.db.WithContext(ctx).Model(&models.CommandJob{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"status":       status,
		"output":       output,
		"completed_at": &now,
	}).Error
	if err != nil {
		return err
	}
	commandsIssued.WithLabelValues(string(status)).Inc()
	return nil
}

// Wait blocks until local commands in flight finished
func (s *CommandService) Wait() {
	s.wg.Wait()
}
