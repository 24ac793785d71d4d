package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/velora-health/privacy-engine/internal/dto"
	"github.com/velora-health/privacy-engine/internal/middleware"
	"github.com/velora-health/privacy-engine/internal/pipeline"
)

type AdminHandler struct {
	pipeline *pipeline.Service
}

func NewAdminHandler(p *pipeline.Service) *AdminHandler {
	return &AdminHandler{pipeline: p}
}

// RotateKey re-wraps all stored envelopes under a new master key. The
// service process still needs a restart (or redeploy) with the new
// ENCRYPTION_MASTER_KEY afterwards.
func (h *AdminHandler) RotateKey(c *fiber.Ctx) error {
	var body dto.RotateKeyRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if body.OldKey == "" || body.NewKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Both old_key and new_key are required",
		})
	}

	stats, err := h.pipeline.RotateMasterKey(body.OldKey, body.NewKey, middleware.ActorID(c))
	if err != nil {
		slog.Error("key rotation failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Key rotation failed",
		})
	}
	return c.JSON(dto.JobResponse{Job: "key_rotation", Result: stats})
}
