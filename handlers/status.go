package handlers

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"vpuppets-console/models"
	"vpuppets-console/services"
	"vpuppets-console/system"
)

// SystemStatus is the console overview
type SystemStatus struct {
	OS       string                       `json:"os"`
	MockMode bool                         `json:"mock_mode"`
	Uptime   string                       `json:"uptime"`
	Actors   map[models.ActorStatus]int64 `json:"actors"`
	Tunnels  int64                        `json:"tunnels"`
	Sessions int64                        `json:"sessions"`
	Host     *services.HostStats          `json:"host,omitempty"`
	Events   []SystemEvent                `json:"events"`
}

type SystemEvent struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, warning, error, success
	Message string `json:"message"`
}

const maxEvents = 100

// Event log storage with mutex for thread safety
var (
	eventLog   = []SystemEvent{}
	eventMutex sync.RWMutex
	startedAt  = time.Now()
)

// AddEvent adds a new event to the log, newest first
func AddEvent(eventType, message string) {
	eventMutex.Lock()
	defer eventMutex.Unlock()

	event := SystemEvent{
		Time:    time.Now().Format("15:04:05"),
		Type:    eventType,
		Message: message,
	}
	eventLog = append([]SystemEvent{event}, eventLog...)
	if len(eventLog) > maxEvents {
		eventLog = eventLog[:maxEvents]
	}

	// Also log to file
	switch eventType {
	case "error":
		system.Error("%s", message)
	case "warning":
		system.Warn("%s", message)
	default:
		system.Info("%s", message)
	}
}

// GetEventLog returns a copy of the event log
func GetEventLog() []SystemEvent {
	eventMutex.RLock()
	defer eventMutex.RUnlock()

	result := make([]SystemEvent, len(eventLog))
	copy(result, eventLog)
	return result
}

// GetSystemStatus returns the console overview
func (h *Handler) GetSystemStatus(c *fiber.Ctx) error {
	var rows []struct {
		Status models.ActorStatus
		Count  int64
	}
	if err := h.DB.Model(&models.Actor{}).Select("status, COUNT(*) as count").Group("status").Scan(&rows).Error; err != nil {
		return errorResponse(c, err)
	}
	actors := map[models.ActorStatus]int64{
		models.StatusOnline:      0,
		models.StatusOffline:     0,
		models.StatusCompromised: 0,
	}
	for _, r := range rows {
		actors[r.Status] = r.Count
	}

	var tunnels, sessions int64
	h.DB.Model(&models.Tunnel{}).Count(&tunnels)
	h.DB.Model(&models.AttackSession{}).Count(&sessions)

	osName := h.Executor.GetOS()
	var host *services.HostStats
	if h.Host != nil {
		stats := h.Host.Stats()
		host = &stats
	}
	return c.JSON(SystemStatus{
		OS:       osName,
		MockMode: strings.HasPrefix(osName, "mock-"),
		Uptime:   time.Since(startedAt).Truncate(time.Second).String(),
		Actors:   actors,
		Tunnels:  tunnels,
		Sessions: sessions,
		Host:     host,
		Events:   GetEventLog(),
	})
}

// GetEvents returns recent events
func (h *Handler) GetEvents(c *fiber.Ctx) error {
	return c.JSON(GetEventLog())
}

// TestWebhook sends a test notification
func (h *Handler) TestWebhook(c *fiber.Ctx) error {
	if err := h.Webhook.SendTestAlert(); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "sent"})
}
