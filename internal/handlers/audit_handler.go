package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/velora-health/privacy-engine/internal/audit"
	"github.com/velora-health/privacy-engine/internal/dto"
)

type AuditHandler struct {
	audit *audit.Service
}

func NewAuditHandler(a *audit.Service) *AuditHandler {
	return &AuditHandler{audit: a}
}

// Verify replays the full audit chain. A broken chain still returns 200 with
// valid=false; only a read failure is an error.
func (h *AuditHandler) Verify(c *fiber.Ctx) error {
	result, err := h.audit.VerifyChain()
	if err != nil {
		slog.Error("audit verification failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Verification failed",
		})
	}
	return c.JSON(result)
}
