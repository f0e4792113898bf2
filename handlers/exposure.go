package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"vpuppets-console/models"
)

// GetExposure - reconciled system and application port tables
func (h *Handler) GetExposure(c *fiber.Ctx) error {
	tables, err := h.Exposure.Tables(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(tables)
}

// StartScan - start a live socket scan in the background
func (h *Handler) StartScan(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.Actors.Get(c.UserContext(), id); err != nil {
		return errorResponse(c, err)
	}
	if err := h.Scans.Start(id); err != nil {
		return errorResponse(c, err)
	}
	return c.Status(202).JSON(h.Scans.Status(id))
}

func (h *Handler) GetScanStatus(c *fiber.Ctx) error {
	return c.JSON(h.Scans.Status(c.Params("id")))
}

func (h *Handler) GetPersonaConflicts(c *fiber.Ctx) error {
	personaID, err := strconv.ParseUint(c.Params("personaId"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid persona id")
	}
	ports, err := h.Exposure.PersonaConflicts(c.UserContext(), c.Params("id"), uint(personaID))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"conflicts": ports})
}

// ActivatePersona - switch persona, refused with 409 on port conflicts
func (h *Handler) ActivatePersona(c *fiber.Ctx) error {
	var req struct {
		PersonaID uint `json:"persona_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.PersonaID == 0 {
		return badRequest(c, "Invalid input")
	}
	id := c.Params("id")
	jobID, err := h.Exposure.ActivatePersona(c.UserContext(), id, req.PersonaID)
	if err != nil {
		return errorResponse(c, err)
	}
	AddEvent("success", "Persona activated on actor "+id)
	return c.JSON(fiber.Map{"status": "applied", "job_id": jobID})
}

func (h *Handler) GetTunnelConflicts(c *fiber.Ctx) error {
	ports, err := h.Exposure.TunnelConflicts(c.UserContext(), c.Params("id"), c.Params("trapId"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"conflicts": ports})
}

// ActivateTunnel - open a tunnel to a trap, refused with 409 on port conflicts
func (h *Handler) ActivateTunnel(c *fiber.Ctx) error {
	var req struct {
		TrapID string `json:"trap_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.TrapID == "" {
		return badRequest(c, "Invalid input")
	}
	id := c.Params("id")
	tunnel, jobID, err := h.Exposure.ActivateTunnel(c.UserContext(), id, req.TrapID)
	if err != nil {
		return errorResponse(c, err)
	}
	if jobID == "" {
		return c.JSON(fiber.Map{"tunnel": tunnel})
	}
	AddEvent("success", "Tunnel "+req.TrapID+" opened on actor "+id)
	return c.Status(201).JSON(fiber.Map{"tunnel": tunnel, "job_id": jobID})
}

func (h *Handler) DeactivateTunnel(c *fiber.Ctx) error {
	id, trapID := c.Params("id"), c.Params("trapId")
	jobID, err := h.Exposure.DeactivateTunnel(c.UserContext(), id, trapID)
	if err != nil {
		return errorResponse(c, err)
	}
	AddEvent("info", "Tunnel "+trapID+" closed on actor "+id)
	return c.JSON(fiber.Map{"status": "closed", "job_id": jobID})
}

func (h *Handler) GetPersonas(c *fiber.Ctx) error {
	personas, err := h.Exposure.ListPersonas(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(personas)
}

func (h *Handler) CreatePersona(c *fiber.Ctx) error {
	var p models.Persona
	if err := c.BodyParser(&p); err != nil {
		return badRequest(c, "Invalid input")
	}
	p.ID = 0
	if err := h.Exposure.CreatePersona(c.UserContext(), &p); err != nil {
		return errorResponse(c, err)
	}
	return c.Status(201).JSON(p)
}

func (h *Handler) GetTraps(c *fiber.Ctx) error {
	traps, err := h.Exposure.ListTraps(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(traps)
}
