package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/velora-health/privacy-engine/internal/config"
	"github.com/velora-health/privacy-engine/internal/cryptox"
	"github.com/velora-health/privacy-engine/internal/database"
	"github.com/velora-health/privacy-engine/internal/dto"
)

type HealthHandler struct {
	cfg    *config.Config
	cipher *cryptox.Cipher
}

func NewHealthHandler(cfg *config.Config, cipher *cryptox.Cipher) *HealthHandler {
	return &HealthHandler{cfg: cfg, cipher: cipher}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if err := database.Ping(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	encryption := "enabled"
	if !h.cipher.Enabled() {
		encryption = "disabled"
	}

	return c.JSON(dto.HealthResponse{
		Status:         "ok",
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		DB:             dbStatus,
		Encryption:     encryption,
		ConsentVersion: h.cfg.ConsentVersion,
	})
}
