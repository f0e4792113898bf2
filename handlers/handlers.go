package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"vpuppets-console/replay"
	"vpuppets-console/services"
	"vpuppets-console/system"
)

// Services bundles the collaborators the HTTP API is served from
type Services struct {
	Actors   *services.ActorService
	Ingest   *services.IngestService
	Threats  *services.ThreatService
	Commands *services.CommandService
	Scans    *services.ScanService
	Exposure *services.ExposureService
	Sessions *services.SessionService
	Replay   *services.ReplayHub
	Webhook  *services.WebhookService
	Host     *services.HostInfo
}

type Handler struct {
	DB       *gorm.DB
	Executor system.CommandExecutor
	Services
}

func NewHandler(db *gorm.DB, executor system.CommandExecutor, svc Services) *Handler {
	return &Handler{DB: db, Executor: executor, Services: svc}
}

// Register mounts every route. auth guards the console routes; agent
// routes stay open.
func (h *Handler) Register(app *fiber.App, auth fiber.Handler) {
	api := app.Group("/api")

	// ===== Agent Routes =====
	api.Post("/logs", h.PostLog)
	api.Post("/agent/:actorId/heartbeat", h.Heartbeat)
	api.Get("/agent/:actorId/jobs", h.AgentJobs)
	api.Post("/agent/jobs/:jobId/result", h.AgentJobResult)

	// ===== Console Routes =====
	console := api.Group("", auth)

	console.Get("/status", h.GetSystemStatus)
	console.Get("/events", h.GetEvents)
	console.Post("/webhook/test", h.TestWebhook)

	// Actors
	console.Get("/actors", h.GetActors)
	console.Get("/actors/:id", h.GetActor)
	console.Get("/actors/:id/logs", h.GetActorLogs)

	// Threat topology
	console.Get("/actors/:id/threats", h.GetThreats)
	console.Post("/actors/:id/threats/clear", h.ClearThreats)

	// Exposure
	console.Get("/actors/:id/exposure", h.GetExposure)
	console.Post("/actors/:id/scan", h.StartScan)
	console.Get("/actors/:id/scan", h.GetScanStatus)
	console.Get("/actors/:id/personas/:personaId/conflicts", h.GetPersonaConflicts)
	console.Put("/actors/:id/persona", h.ActivatePersona)
	console.Get("/actors/:id/traps/:trapId/conflicts", h.GetTunnelConflicts)
	console.Post("/actors/:id/tunnels", h.ActivateTunnel)
	console.Delete("/actors/:id/tunnels/:trapId", h.DeactivateTunnel)
	console.Get("/personas", h.GetPersonas)
	console.Post("/personas", h.CreatePersona)
	console.Get("/traps", h.GetTraps)

	// Commands
	console.Post("/actors/:id/commands", h.IssueCommand)
	console.Get("/commands/:jobId", h.GetCommand)

	// Sessions and replay
	console.Get("/sessions", h.GetSessions)
	console.Post("/sessions", h.CreateSession)
	console.Get("/sessions/:id", h.GetSession)
	console.Get("/replay/:viewer", h.GetReplay)
	console.Post("/replay/:viewer/select", h.SelectReplay)
	console.Post("/replay/:viewer/play", h.PlayReplay)
	console.Post("/replay/:viewer/pause", h.PauseReplay)
	console.Post("/replay/:viewer/seek", h.SeekReplay)
	console.Post("/replay/:viewer/rewind", h.RewindReplay)
	console.Post("/replay/:viewer/forward", h.ForwardReplay)
	console.Post("/replay/:viewer/speed", h.SpeedReplay)
	console.Delete("/replay/:viewer", h.CloseReplay)
}

// errorResponse maps service errors to status codes
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrJobNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrPortConflict), errors.Is(err, services.ErrScanInProgress):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrScanTimeout):
		status = fiber.StatusGatewayTimeout
	case errors.Is(err, services.ErrInvalidLog),
		errors.Is(err, services.ErrInvalidPersona),
		errors.Is(err, services.ErrEmptyCommand),
		errors.Is(err, replay.ErrInvalidSession),
		errors.Is(err, replay.ErrInvalidSpeed),
		errors.Is(err, replay.ErrNoSession):
		status = fiber.StatusBadRequest
	}
	if status == fiber.StatusInternalServerError {
		system.Error("%s %s: %v", c.Method(), c.Path(), err)
	}

	body := fiber.Map{"error": err.Error()}
	var ce *services.ConflictError
	if errors.As(err, &ce) {
		body["conflicts"] = ce.Ports
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
