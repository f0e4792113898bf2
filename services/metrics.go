package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	logsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vpuppets_logs_ingested_total",
		Help: "Log entries accepted, by level",
	}, []string{"level", "source"})

	logsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vpuppets_logs_rejected_total",
		Help: "Log entries rejected at ingest",
	}, []string{"source"})

	threatViews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vpuppets_threat_views_total",
		Help: "Threat topology recomputations",
	})

	attackersVisible = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vpuppets_attackers_visible",
		Help: "Attackers in the most recent threat view of an actor",
	}, []string{"actor"})

	commandsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vpuppets_commands_total",
		Help: "Commands by terminal status",
	}, []string{"status"})

	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vpuppets_live_scans_total",
		Help: "Live port scans by outcome",
	}, []string{"result"})

	replayEngines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vpuppets_replay_engines",
		Help: "Open replay engines",
	})

	alertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vpuppets_alerts_sent_total",
		Help: "Webhook alerts sent, by kind",
	}, []string{"kind"})
)
