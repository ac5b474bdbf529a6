package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/core/services"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
	"github.com/supplyhub/backend/internal/transport/http/dto"
)

type SettingHandler struct {
	service  ports.SettingService
	defaults domain.UploadPolicy
	logger   *logger.Logger
}

// NewSettingHandler serves the upload policy. defaults are the configured
// values the stored settings are overlaid on.
func NewSettingHandler(service ports.SettingService, defaults domain.UploadPolicy, logger *logger.Logger) *SettingHandler {
	return &SettingHandler{service: service, defaults: defaults, logger: logger}
}

func (h *SettingHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.service.GetSettings(c.UserContext())
	if err != nil {
		h.logger.Errorw("settings_get_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}
	return c.JSON(settings)
}

// GetUploadPolicy returns the policy the next batch will start with.
func (h *SettingHandler) GetUploadPolicy(c *fiber.Ctx) error {
	policy, err := h.service.UploadPolicy(c.UserContext(), h.defaults)
	if err != nil {
		h.logger.Errorw("upload_policy_get_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}
	return c.JSON(policy)
}

func (h *SettingHandler) UpdateUploadPolicy(c *fiber.Ctx) error {
	var req dto.UpdateUploadPolicyRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("upload_policy_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errs,
		})
	}

	if err := h.service.UpdateUploadPolicy(c.UserContext(), req.ToDomain()); err != nil {
		if errors.Is(err, services.ErrSettingInvalid) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		h.logger.Errorw("upload_policy_update_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return h.GetUploadPolicy(c)
}
