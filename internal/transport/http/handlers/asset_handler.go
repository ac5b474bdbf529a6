package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/core/services"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
	"github.com/supplyhub/backend/internal/transport/http/dto"
)

type AssetHandler struct {
	service ports.AssetService
	logger  *logger.Logger
}

func NewAssetHandler(service ports.AssetService, logger *logger.Logger) *AssetHandler {
	return &AssetHandler{service: service, logger: logger}
}

func (h *AssetHandler) GetAssets(c *fiber.Ctx) error {
	assets, err := h.service.GetAssets(c.UserContext())
	if err != nil {
		h.logger.Errorw("assets_list_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}
	return c.JSON(dto.AssetsToResponse(assets))
}

func (h *AssetHandler) GetAsset(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid asset id",
		})
	}

	asset, err := h.service.GetAsset(c.UserContext(), uint(id))
	if errors.Is(err, services.ErrAssetNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: "asset not found",
		})
	}
	if err != nil {
		h.logger.Errorw("asset_get_failed", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}
	return c.JSON(dto.AssetToResponse(asset))
}

func (h *AssetHandler) DeleteAsset(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid asset id",
		})
	}

	h.logger.Infow("asset_delete_request", "id", id)
	err = h.service.DeleteAsset(c.UserContext(), uint(id))
	switch {
	case err == nil:
		return c.SendStatus(fiber.StatusNoContent)
	case errors.Is(err, services.ErrAssetNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "asset not found"})
	case errors.Is(err, services.ErrAssetRemoveFailed):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: err.Error()})
	default:
		h.logger.Errorw("asset_delete_failed", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
}
