package services

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"vpuppets-console/models"
	"vpuppets-console/system"
)

// FleetMonitor periodically recomputes every actor's threat view, which keeps
// actor status current, and alerts on attackers it has not reported recently
type FleetMonitor struct {
	db            *gorm.DB
	threats       *ThreatService
	webhook       *WebhookService
	stopChan      chan struct{}
	stopOnce      sync.Once
	checkInterval time.Duration

	// Cooldown tracking, keyed by actor id + attacker ip
	mu        sync.Mutex
	lastAlert map[string]time.Time
	cooldown  time.Duration
	now       func() time.Time
}

func NewFleetMonitor(db *gorm.DB, threats *ThreatService, webhook *WebhookService, interval, cooldown time.Duration) *FleetMonitor {
	return &FleetMonitor{
		db:            db,
		threats:       threats,
		webhook:       webhook,
		stopChan:      make(chan struct{}),
		checkInterval: interval,
		lastAlert:     make(map[string]time.Time),
		cooldown:      cooldown,
		now:           time.Now,
	}
}

// Start begins the monitoring loop
func (m *FleetMonitor) Start() {
	go func() {
		system.Info("Fleet Monitor started (interval: %s)", m.checkInterval)
		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Check(context.Background())
			case <-m.stopChan:
				system.Info("Fleet Monitor stopped")
				return
			}
		}
	}()
}

// Stop stops the monitoring loop
func (m *FleetMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// Check runs one pass over the fleet and returns the number of alerts sent
func (m *FleetMonitor) Check(ctx context.Context) int {
	var actors []models.Actor
	if err := m.db.WithContext(ctx).Find(&actors).Error; err != nil {
		system.Warn("Fleet Monitor: failed to list actors: %v", err)
		return 0
	}

	sent := 0
	for _, actor := range actors {
		view, err := m.threats.View(ctx, actor.ID, "")
		if err != nil {
			system.Warn("Fleet Monitor: threat view of %s failed: %v", actor.ID, err)
			continue
		}
		for _, rec := range view.Attackers {
			if !m.due(actor.ID, rec.IP) {
				continue
			}
			if err := m.webhook.SendAttackAlert(actor.Name, rec, view.Countries[rec.IP]); err != nil {
				system.Warn("Fleet Monitor: attack alert failed: %v", err)
				continue
			}
			if m.webhook.IsEnabled() {
				sent++
			}
		}
	}
	return sent
}

// due records the alert time and reports whether the cooldown has passed
func (m *FleetMonitor) due(actorID, ip string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := actorID + "|" + ip
	now := m.now()
	if last, ok := m.lastAlert[key]; ok && now.Sub(last) < m.cooldown {
		return false
	}
	m.lastAlert[key] = now
	return true
}
