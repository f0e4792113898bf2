package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vpuppets-console/models"
	"vpuppets-console/replay"
)

// SessionService stores recorded attack sessions
type SessionService struct {
	db *gorm.DB
}

func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{db: db}
}

// List returns sessions without frames, newest first. An empty actorID
// lists every actor.
func (s *SessionService) List(ctx context.Context, actorID string) ([]models.AttackSession, error) {
	q := s.db.WithContext(ctx).Order("start_time DESC")
	if actorID != "" {
		q = q.Where("actor_id = ?", actorID)
	}
	var sessions []models.AttackSession
	err := q.Find(&sessions).Error
	return sessions, err
}

// Get loads a session with its frames in recording order
func (s *SessionService) Get(ctx context.Context, id string) (*models.AttackSession, error) {
	var sess models.AttackSession
	err := s.db.WithContext(ctx).
		Preload("Frames", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		First(&sess, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Create validates and stores a recorded session. Frames keep the order
// they were given in.
func (s *SessionService) Create(ctx context.Context, sess *models.AttackSession) error {
	if err := replay.Validate(sess); err != nil {
		return err
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	for i := range sess.Frames {
		sess.Frames[i].ID = 0
		sess.Frames[i].SessionID = sess.ID
		sess.Frames[i].Seq = i
	}
	return s.db.WithContext(ctx).Create(sess).Error
}
