package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/velora-health/privacy-engine/internal/dto"
	"github.com/velora-health/privacy-engine/internal/middleware"
	"github.com/velora-health/privacy-engine/internal/pipeline"
)

type PrivacyHandler struct {
	pipeline *pipeline.Service
}

func NewPrivacyHandler(p *pipeline.Service) *PrivacyHandler {
	return &PrivacyHandler{pipeline: p}
}

// RequestErasure records a right-to-be-forgotten request; the next retention
// sweep performs the deletion.
func (h *PrivacyHandler) RequestErasure(c *fiber.Ctx) error {
	var body dto.ErasureRequestBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid user id",
		})
	}

	req, err := h.pipeline.RequestErasure(userID, middleware.ActorID(c))
	if err != nil {
		if errors.Is(err, pipeline.ErrUserUnderLegalHold) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: "User is under an active legal hold",
			})
		}
		slog.Error("erasure request failed", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to record erasure request",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.ErasureResponse{
		RequestID: req.ID.String(),
		UserID:    req.UserID.String(),
		Status:    req.Status,
	})
}

// Export returns the data-portability bundle for one user.
func (h *PrivacyHandler) Export(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid user id",
		})
	}

	export, err := h.pipeline.ExportUserData(userID, middleware.ActorID(c))
	if err != nil {
		if errors.Is(err, pipeline.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "User not found",
			})
		}
		slog.Error("export failed", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Export failed",
		})
	}
	return c.JSON(export)
}
