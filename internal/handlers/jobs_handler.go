package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/velora-health/privacy-engine/internal/dto"
	"github.com/velora-health/privacy-engine/internal/pipeline"
)

// JobsHandler exposes the scheduled pipelines as trigger endpoints for the
// external scheduler. Jobs run synchronously; the scheduler's timeout bounds
// them.
type JobsHandler struct {
	pipeline *pipeline.Service
}

func NewJobsHandler(p *pipeline.Service) *JobsHandler {
	return &JobsHandler{pipeline: p}
}

func (h *JobsHandler) RunExtraction(c *fiber.Ctx) error {
	stats, err := h.pipeline.RunExtraction(c.Context())
	if err != nil {
		slog.Error("extraction job failed", "job", "extraction", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Extraction failed",
		})
	}
	return c.JSON(dto.JobResponse{Job: "extraction", Result: stats})
}

func (h *JobsHandler) RunAggregation(c *fiber.Ctx) error {
	stats, err := h.pipeline.RunAggregation(time.Now())
	if err != nil {
		slog.Error("aggregation job failed", "job", "aggregation", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Aggregation failed",
		})
	}
	return c.JSON(dto.JobResponse{Job: "aggregation", Result: stats})
}

func (h *JobsHandler) RunRetention(c *fiber.Ctx) error {
	stats, err := h.pipeline.RunRetention(time.Now())
	if err != nil {
		slog.Error("retention job failed", "job", "retention", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Retention sweep failed",
		})
	}
	return c.JSON(dto.JobResponse{Job: "retention", Result: stats})
}

func (h *JobsHandler) RunModelImprovement(c *fiber.Ctx) error {
	report, err := h.pipeline.RunModelImprovement(c.Context(), time.Now())
	if err != nil {
		slog.Error("model improvement job failed", "job", "model_improvement", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Model improvement scan failed",
		})
	}
	return c.JSON(dto.JobResponse{Job: "model_improvement", Result: report})
}
