package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"vpuppets-console/models"
	"vpuppets-console/system"
)

// StatusListener is told about every persisted actor status change
type StatusListener func(actor models.Actor, from, to models.ActorStatus)

// ActorService owns the actor registry
type ActorService struct {
	db       *gorm.DB
	listener StatusListener
	now      func() time.Time
}

func NewActorService(db *gorm.DB) *ActorService {
	return &ActorService{db: db, now: time.Now}
}

// OnStatusChange installs the status change listener
func (s *ActorService) OnStatusChange(l StatusListener) {
	s.listener = l
}

// HeartbeatRequest is what an agent reports about itself
type HeartbeatRequest struct {
	Name  string `json:"name"`
	WanIP string `json:"wan_ip"`
	LanIP string `json:"lan_ip"`
}

func (s *ActorService) List(ctx context.Context) ([]models.Actor, error) {
	var actors []models.Actor
	if err := s.db.WithContext(ctx).Preload("Persona").Preload("Tunnels").Order("name").Find(&actors).Error; err != nil {
		return nil, err
	}
	return actors, nil
}

// Get loads an actor with its persona and active tunnels
func (s *ActorService) Get(ctx context.Context, id string) (*models.Actor, error) {
	var actor models.Actor
	err := s.db.WithContext(ctx).Preload("Persona").Preload("Tunnels").First(&actor, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("actor %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &actor, nil
}

// Heartbeat registers an unknown actor or refreshes a known one.
// An OFFLINE actor comes back ONLINE.
func (s *ActorService) Heartbeat(ctx context.Context, id string, req HeartbeatRequest) (*models.Actor, error) {
	if id == "" {
		return nil, fmt.Errorf("actor id: %w", ErrNotFound)
	}
	now := s.now()

	var actor models.Actor
	err := s.db.WithContext(ctx).First(&actor, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		actor = models.Actor{
			ID:       id,
			Name:     req.Name,
			WanIP:    req.WanIP,
			LanIP:    req.LanIP,
			Status:   models.StatusOnline,
			LastSeen: now,
		}
		if actor.Name == "" {
			actor.Name = id
		}
		if err := s.db.WithContext(ctx).Create(&actor).Error; err != nil {
			return nil, err
		}
		system.Info("Actor registered: %s (%s)", actor.Name, actor.ID)
		s.notify(actor, "", models.StatusOnline)
		return &actor, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"last_seen": now}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.WanIP != "" {
		updates["wan_ip"] = req.WanIP
	}
	if req.LanIP != "" {
		updates["lan_ip"] = req.LanIP
	}
	prev := actor.Status
	if prev == models.StatusOffline {
		updates["status"] = models.StatusOnline
	}
	if err := s.db.WithContext(ctx).Model(&models.Actor{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(&actor, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if prev == models.StatusOffline {
		s.notify(actor, prev, models.StatusOnline)
	}
	return &actor, nil
}

// SetStatus persists a status transition and notifies the listener.
// It is a no-op when the status does not change.
func (s *ActorService) SetStatus(ctx context.Context, actor *models.Actor, to models.ActorStatus) error {
	from := actor.Status
	if from == to {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&models.Actor{}).Where("id = ?", actor.ID).Update("status", to).Error; err != nil {
		return fmt.Errorf("update status of %s: %w", actor.ID, err)
	}
	actor.Status = to
	s.notify(*actor, from, to)
	return nil
}

// Logs returns the newest entries of an actor, newest first
func (s *ActorService) Logs(ctx context.Context, id string, limit int) ([]models.LogEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var logs []models.LogEntry
	err := s.db.WithContext(ctx).
		Where("actor_id = ?", id).
		Order("timestamp DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (s *ActorService) notify(actor models.Actor, from, to models.ActorStatus) {
	system.Info("Actor %s status %s -> %s", actor.Name, from, to)
	if s.listener != nil {
		s.listener(actor, from, to)
	}
}
