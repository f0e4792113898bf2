package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// GetActors - List all actors with persona and tunnels
func (h *Handler) GetActors(c *fiber.Ctx) error {
	actors, err := h.Actors.List(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(actors)
}

func (h *Handler) GetActor(c *fiber.Ctx) error {
	actor, err := h.Actors.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(actor)
}

// GetActorLogs - newest log entries of an actor (?limit=, default 100)
func (h *Handler) GetActorLogs(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.Actors.Get(c.UserContext(), id); err != nil {
		return errorResponse(c, err)
	}
	logs, err := h.Actors.Logs(c.UserContext(), id, c.QueryInt("limit", 100))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(logs)
}

// GetThreats - recomputed threat topology as seen by the caller
func (h *Handler) GetThreats(c *fiber.Ctx) error {
	view, err := h.Threats.View(c.UserContext(), c.Params("id"), currentUser(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(view)
}

// ClearThreats - hide everything logged so far from the caller's view
func (h *Handler) ClearThreats(c *fiber.Ctx) error {
	id := c.Params("id")
	ms, err := h.Threats.ClearView(c.UserContext(), id, currentUser(c))
	if err != nil {
		return errorResponse(c, err)
	}
	AddEvent("info", "Threat view cleared for actor "+id)
	return c.JSON(fiber.Map{"actor_id": id, "dismissed_at_ms": ms})
}
