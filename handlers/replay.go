package handlers

import (
	"github.com/gofiber/fiber/v2"

	"vpuppets-console/models"
)

func (h *Handler) GetSessions(c *fiber.Ctx) error {
	sessions, err := h.Sessions.List(c.UserContext(), c.Query("actor"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(sessions)
}

func (h *Handler) GetSession(c *fiber.Ctx) error {
	sess, err := h.Sessions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(sess)
}

// CreateSession - store a recorded session uploaded by an agent or import
func (h *Handler) CreateSession(c *fiber.Ctx) error {
	var sess models.AttackSession
	if err := c.BodyParser(&sess); err != nil {
		return badRequest(c, "Invalid input")
	}
	if err := h.Sessions.Create(c.UserContext(), &sess); err != nil {
		return errorResponse(c, err)
	}
	return c.Status(201).JSON(sess)
}

func (h *Handler) GetReplay(c *fiber.Ctx) error {
	return c.JSON(h.Replay.Snapshot(c.Params("viewer")))
}

func (h *Handler) SelectReplay(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.SessionID == "" {
		return badRequest(c, "Invalid input")
	}
	snap, err := h.Replay.Select(c.UserContext(), c.Params("viewer"), req.SessionID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(snap)
}

func (h *Handler) PlayReplay(c *fiber.Ctx) error {
	e := h.Replay.Engine(c.Params("viewer"))
	e.Play()
	return c.JSON(e.Snapshot())
}

func (h *Handler) PauseReplay(c *fiber.Ctx) error {
	e := h.Replay.Engine(c.Params("viewer"))
	e.Pause()
	return c.JSON(e.Snapshot())
}

func (h *Handler) SeekReplay(c *fiber.Ctx) error {
	var req struct {
		OffsetMs int64 `json:"offset_ms"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid input")
	}
	e := h.Replay.Engine(c.Params("viewer"))
	if err := e.Seek(req.OffsetMs); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(e.Snapshot())
}

func (h *Handler) RewindReplay(c *fiber.Ctx) error {
	e := h.Replay.Engine(c.Params("viewer"))
	if err := e.Rewind(); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(e.Snapshot())
}

func (h *Handler) ForwardReplay(c *fiber.Ctx) error {
	e := h.Replay.Engine(c.Params("viewer"))
	if err := e.FastForward(); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(e.Snapshot())
}

// SpeedReplay - set {"speed": 1|2|4}, or cycle when no speed is given
func (h *Handler) SpeedReplay(c *fiber.Ctx) error {
	var req struct {
		Speed int `json:"speed"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid input")
		}
	}
	e := h.Replay.Engine(c.Params("viewer"))
	if req.Speed == 0 {
		e.CycleSpeed()
	} else if err := e.SetSpeed(req.Speed); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(e.Snapshot())
}

func (h *Handler) CloseReplay(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"closed": h.Replay.Close(c.Params("viewer"))})
}
