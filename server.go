package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"vpuppets-console/config"
	"vpuppets-console/handlers"
	"vpuppets-console/models"
	"vpuppets-console/replay"
	"vpuppets-console/services"
	"vpuppets-console/system"
)

func runServer(cfg config.Config) error {
	// 0. Initialize Logger
	if err := system.InitLogger(cfg.LogDir, cfg.LogLevel); err != nil {
		log.Printf("Warning: Could not initialize file logger: %v", err)
	}
	defer system.Close()

	system.Info("Virtual Puppets console starting...")

	// 1. Setup Database
	db, err := gorm.Open(sqlite.Open(cfg.DBPath+"?_pragma=busy_timeout(5000)"), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	system.Info("Database connected: %s", cfg.DBPath)

	// WAL keeps agent log ingest from locking out console reads
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		system.Warn("Failed to enable WAL mode: %v", err)
	}

	if err := models.Migrate(db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	if n, err := models.SeedTraps(db); err != nil {
		system.Warn("Failed to seed trap catalog: %v", err)
	} else if n > 0 {
		system.Info("Seeded %d default traps", n)
	}

	// 2. Setup Services
	executor := system.NewExecutor(cfg.MockExec)

	webhookService := services.NewWebhookService(cfg.Webhook.DiscordURL)
	if webhookService.IsEnabled() {
		system.Info("Discord webhook configured")
	}

	geoipService, err := services.NewGeoIPService(cfg.GeoIP.Path)
	if err != nil {
		system.Warn("GeoIP lookups disabled: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	localMarks, err := services.NewFileWatermarkStore(filepath.Join(cfg.DataDir, "watermarks.json"))
	if err != nil {
		return err
	}
	watermarks := services.NewWatermarkService(services.NewDBWatermarkStore(db), localMarks)

	actorService := services.NewActorService(db)
	actorService.OnStatusChange(func(actor models.Actor, from, to models.ActorStatus) {
		eventType := "info"
		switch to {
		case models.StatusCompromised:
			eventType = "error"
		case models.StatusOffline:
			eventType = "warning"
		}
		if from == "" {
			handlers.AddEvent("success", fmt.Sprintf("Actor %s registered", actor.Name))
			return
		}
		handlers.AddEvent(eventType, fmt.Sprintf("Actor %s: %s -> %s", actor.Name, from, to))
		if webhookService.IsEnabled() {
			go func() {
				if err := webhookService.SendStatusAlert(actor.Name, from, to); err != nil {
					system.Warn("Status alert failed: %v", err)
				}
			}()
		}
	})

	ingestService := services.NewIngestService(db)
	threatService := services.NewThreatService(db, actorService, watermarks, geoipService)
	commandService := services.NewCommandService(db, executor)
	scanService := services.NewScanService(commandService, cfg.Scan.Timeout, cfg.Scan.PollInterval)
	exposureService := services.NewExposureService(db, actorService, scanService, commandService)
	sessionService := services.NewSessionService(db)
	replayHub := services.NewReplayHub(sessionService, replay.TickerScheduler{}, cfg.Replay.Tick)

	fleetMonitor := services.NewFleetMonitor(db, threatService, webhookService, cfg.Monitor.Interval, cfg.Monitor.AlertCooldown)
	fleetMonitor.Start()

	healthMonitor := services.NewHealthMonitor(db, actorService, cfg.Health.OfflineAfter)
	healthMonitor.Start()

	dailyReporter := services.NewDailyReporter(db, webhookService)
	dailyReporter.Start()

	var feed *services.TelemetryFeed
	if cfg.NATS.URL != "" {
		feed = services.NewTelemetryFeed(cfg.NATS.URL, cfg.NATS.Subject, ingestService)
		if err := feed.Start(); err != nil {
			system.Error("Telemetry feed unavailable: %v", err)
			feed = nil
		}
	}

	// 3. Setup Handlers
	h := handlers.NewHandler(db, executor, handlers.Services{
		Actors:   actorService,
		Ingest:   ingestService,
		Threats:  threatService,
		Commands: commandService,
		Scans:    scanService,
		Exposure: exposureService,
		Sessions: sessionService,
		Replay:   replayHub,
		Webhook:  webhookService,
		Host:     services.NewHostInfo(),
	})

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Add request logging middleware
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		Output:     os.Stdout,
	}))
	app.Use(cors.New())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	if cfg.JWTSecret == "" {
		system.Warn("jwt_secret is empty, console routes are open")
	}
	h.Register(app, handlers.JWTAuthMiddleware([]byte(cfg.JWTSecret)))

	handlers.AddEvent("info", "Console started ("+executor.GetOS()+")")
	system.Info("Server starting on %s (Mode: %s)", cfg.Listen, executor.GetOS())

	if webhookService.IsEnabled() {
		go func() {
			msg := fmt.Sprintf("Virtual Puppets console is now running on **%s** (%s)",
				executor.GetOS(), time.Now().Format("2006-01-02 15:04:05"))
			if err := webhookService.SendSystemAlert("🚀 Console Started", msg, services.ColorGreen); err != nil {
				system.Warn("Startup alert failed: %v", err)
			}
		}()
	}

	// Graceful Shutdown Handling
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		system.Info("Gracefully shutting down...")

		fleetMonitor.Stop()
		healthMonitor.Stop()
		dailyReporter.Stop()
		if feed != nil {
			feed.Stop()
		}
		replayHub.Shutdown()
		scanService.Wait()
		commandService.Wait()
		watermarks.Wait()
		_ = geoipService.Close()

		if webhookService.IsEnabled() {
			_ = webhookService.SendSystemAlert("🛑 Console Stopping", "Virtual Puppets console is shutting down...", services.ColorOrange)
		}

		_ = app.Shutdown()
	}()

	return app.Listen(cfg.Listen)
}
