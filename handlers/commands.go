package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// IssueCommand - queue a command for an actor, returns the job id at once
func (h *Handler) IssueCommand(c *fiber.Ctx) error {
	var req struct {
		Command string `json:"command"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid input")
	}
	jobID, err := h.Commands.Issue(c.UserContext(), c.Params("id"), req.Command)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(202).JSON(fiber.Map{"job_id": jobID})
}

// GetCommand - poll a job
func (h *Handler) GetCommand(c *fiber.Ctx) error {
	job, err := h.Commands.Result(c.UserContext(), c.Params("jobId"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(job)
}
