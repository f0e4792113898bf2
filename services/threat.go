package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"vpuppets-console/correlation"
	"vpuppets-console/models"
	"vpuppets-console/system"
)

// ThreatService computes threat views and keeps actor status in step with
// them
type ThreatService struct {
	db         *gorm.DB
	actors     *ActorService
	watermarks *WatermarkService
	geo        *GeoIPService
	now        func() time.Time
}

func NewThreatService(db *gorm.DB, actors *ActorService, watermarks *WatermarkService, geo *GeoIPService) *ThreatService {
	return &ThreatService{db: db, actors: actors, watermarks: watermarks, geo: geo, now: time.Now}
}

// View recomputes the threat topology of an actor from a snapshot of its
// logs, as seen by userID ("" for an anonymous viewer).
//
// The anonymous view is the fleet's view: only it moves the persisted actor
// status. A user's view reports the status its own watermark implies and
// writes nothing.
func (s *ThreatService) View(ctx context.Context, actorID, userID string) (*models.ThreatView, error) {
	actor, err := s.actors.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var logs []models.LogEntry
	if err := s.db.WithContext(ctx).Where("actor_id = ?", actorID).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("load logs of %s: %w", actorID, err)
	}

	dismissed := s.watermarks.Get(userID, actorID)
	res := correlation.Aggregate(logs, dismissed, actor.WanIP, actor.LanIP)
	threatViews.Inc()
	attackersVisible.WithLabelValues(actorID).Set(float64(len(res.Attackers)))

	status := correlation.NextStatus(actor.Status, res)
	if userID == "" {
		if err := s.actors.SetStatus(ctx, actor, status); err != nil {
			return nil, err
		}
	}

	ips := make([]string, 0, len(res.Attackers))
	for _, a := range res.Attackers {
		ips = append(ips, a.IP)
	}

	system.L().Debug("threat view computed",
		zap.String("actor", actorID),
		zap.Int("logs", len(logs)),
		zap.Int("attackers", len(res.Attackers)),
		zap.Int64("dismissed_at_ms", dismissed),
	)

	return &models.ThreatView{
		ActorID:       actorID,
		Status:        status,
		DismissedAtMs: dismissed,
		Attackers:     res.Attackers,
		Payloads:      res.Payloads,
		Countries:     s.geo.Countries(ips),
	}, nil
}

// ClearView hides everything logged up to now from userID's view of the
// actor and returns the new watermark
func (s *ThreatService) ClearView(ctx context.Context, actorID, userID string) (int64, error) {
	if _, err := s.actors.Get(ctx, actorID); err != nil {
		return 0, err
	}
	ms := s.watermarks.Set(userID, actorID, s.now().UnixMilli())
	system.Info("Threat view of %s cleared at %d (user %q)", actorID, ms, userID)
	return ms, nil
}
