package services

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"vpuppets-console/models"
	"vpuppets-console/system"
)

// HealthMonitor marks actors OFFLINE when their agent stops heartbeating
type HealthMonitor struct {
	db           *gorm.DB
	actors       *ActorService
	offlineAfter time.Duration
	interval     time.Duration
	stopChan     chan struct{}
	stopOnce     sync.Once
	now          func() time.Time
}

func NewHealthMonitor(db *gorm.DB, actors *ActorService, offlineAfter time.Duration) *HealthMonitor {
	interval := offlineAfter / 4
	if interval < time.Second {
		interval = time.Second
	}
	return &HealthMonitor{
		db:           db,
		actors:       actors,
		offlineAfter: offlineAfter,
		interval:     interval,
		stopChan:     make(chan struct{}),
		now:          time.Now,
	}
}

func (h *HealthMonitor) Start() {
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				h.Check(context.Background())
			case <-h.stopChan:
				return
			}
		}
	}()
	system.Info("Health Monitor started (offline after %s)", h.offlineAfter)
}

func (h *HealthMonitor) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

// Check flips stale actors to OFFLINE and returns how many changed
func (h *HealthMonitor) Check(ctx context.Context) int {
	cutoff := h.now().Add(-h.offlineAfter)

	var stale []models.Actor
	err := h.db.WithContext(ctx).
		Where("status <> ? AND last_seen < ?", models.StatusOffline, cutoff).
		Find(&stale).Error
	if err != nil {
		system.Warn("Health Monitor: failed to query actors: %v", err)
		return 0
	}

	for i := range stale {
		if err := h.actors.SetStatus(ctx, &stale[i], models.StatusOffline); err != nil {
			system.Warn("Health Monitor: %v", err)
		}
	}
	return len(stale)
}
