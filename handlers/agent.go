package handlers

import (
	"github.com/gofiber/fiber/v2"

	"vpuppets-console/services"
)

// PostLog - ingest one log entry pushed by an agent
func (h *Handler) PostLog(c *fiber.Ctx) error {
	entry, err := h.Ingest.IngestJSON(c.UserContext(), c.Body(), "http")
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(201).JSON(entry)
}

// Heartbeat - register or refresh an agent
func (h *Handler) Heartbeat(c *fiber.Ctx) error {
	var req services.HeartbeatRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid input")
		}
	}
	actor, err := h.Actors.Heartbeat(c.UserContext(), c.Params("actorId"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(actor)
}

// AgentJobs - hand pending commands to the agent
func (h *Handler) AgentJobs(c *fiber.Ctx) error {
	jobs, err := h.Commands.Pending(c.UserContext(), c.Params("actorId"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(jobs)
}

type jobResultRequest struct {
	Output string `json:"output"`
	Failed bool   `json:"failed"`
}

// AgentJobResult - store the output of a command
func (h *Handler) AgentJobResult(c *fiber.Ctx) error {
	var req jobResultRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid input")
	}
	jobID := c.Params("jobId")
	if err := h.Commands.Complete(c.UserContext(), jobID, req.Output, req.Failed); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"status": "stored", "job_id": jobID})
}
