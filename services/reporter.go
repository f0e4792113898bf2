package services

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"vpuppets-console/correlation"
	"vpuppets-console/models"
	"vpuppets-console/system"
)

// DailyReporter sends a daily threat summary to the webhook
type DailyReporter struct {
	db       *gorm.DB
	webhook  *WebhookService
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewDailyReporter(db *gorm.DB, webhook *WebhookService) *DailyReporter {
	return &DailyReporter{
		db:       db,
		webhook:  webhook,
		stopChan: make(chan struct{}),
	}
}

// Start schedules the report at local midnight
func (r *DailyReporter) Start() {
	go func() {
		for {
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
			system.Info("Next daily report scheduled in %v", next.Sub(now))

			timer := time.NewTimer(next.Sub(now))
			select {
			case <-timer.C:
				r.SendReport()
			case <-r.stopChan:
				timer.Stop()
				return
			}
		}
	}()
}

func (r *DailyReporter) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
}

// Summary is the threat activity over a period
type Summary struct {
	Alerts      int64  `json:"alerts"`
	Attackers   int    `json:"attackers"`
	TopAttacker string `json:"top_attacker"`
	TopActor    string `json:"top_actor"`
}

// Summarize counts WARNING and CRITICAL entries since the given time. The
// top attacker is the one with most events fleet-wide.
func (r *DailyReporter) Summarize(since time.Time) (Summary, error) {
	var logs []models.LogEntry
	err := r.db.Where("timestamp >= ? AND level IN ?", since,
		[]models.Level{models.LevelWarning, models.LevelCritical}).
		Find(&logs).Error
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Alerts: int64(len(logs)), TopAttacker: "None", TopActor: "None"}

	byActor := make(map[string][]models.LogEntry)
	actorNames := make(map[string]string)
	for _, e := range logs {
		byActor[e.ActorID] = append(byActor[e.ActorID], e)
		actorNames[e.ActorID] = e.ActorName
	}

	var actors []models.Actor
	if err := r.db.Find(&actors).Error; err != nil {
		return Summary{}, err
	}
	self := make(map[string]models.Actor)
	for _, a := range actors {
		self[a.ID] = a
	}

	perIP := make(map[string]int)
	topActorCount := 0
	for actorID, entries := range byActor {
		a := self[actorID]
		res := correlation.Aggregate(entries, 0, a.WanIP, a.LanIP)
		for _, rec := range res.Attackers {
			perIP[rec.IP] += rec.Count
		}
		if len(entries) > topActorCount || (len(entries) == topActorCount && actorNames[actorID] < sum.TopActor) {
			topActorCount = len(entries)
			sum.TopActor = actorNames[actorID]
			if sum.TopActor == "" {
				sum.TopActor = actorID
			}
		}
	}

	top := 0
	for ip, n := range perIP {
		if n > top || (n == top && ip < sum.TopAttacker) {
			top = n
			sum.TopAttacker = ip
		}
	}
	sum.Attackers = len(perIP)
	return sum, nil
}

// SendReport generates and sends the report
func (r *DailyReporter) SendReport() {
	if !r.webhook.IsEnabled() {
		return
	}

	system.Info("Generating daily threat report...")
	yesterday := time.Now().Add(-24 * time.Hour)
	sum, err := r.Summarize(yesterday)
	if err != nil {
		system.Warn("Daily report failed: %v", err)
		return
	}

	title := fmt.Sprintf("📊 Daily Threat Report (%s)", yesterday.Format("2006-01-02"))
	desc := fmt.Sprintf("**Threat Summary**\n"+
		"• Alerts: `%d`\n"+
		"• Distinct Attackers: `%d`\n"+
		"• Top Attacker: `%s`\n"+
		"• Most Targeted Actor: `%s`",
		sum.Alerts, sum.Attackers, sum.TopAttacker, sum.TopActor)

	if err := r.webhook.SendSystemAlert(title, desc, ColorBlue); err != nil {
		system.Warn("Daily report delivery failed: %v", err)
		return
	}
	alertsSent.WithLabelValues("report").Inc()
}
