package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/core/services"
	"github.com/supplyhub/backend/internal/core/upload"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
	"github.com/supplyhub/backend/internal/transport/http/dto"
)

const filesField = "files"

type BatchHandler struct {
	service ports.UploadService
	logger  *logger.Logger
}

func NewBatchHandler(service ports.UploadService, logger *logger.Logger) *BatchHandler {
	return &BatchHandler{service: service, logger: logger}
}

// SubmitBatch accepts a multipart form with one or more "files" parts and
// starts uploading the admitted ones.
func (h *BatchHandler) SubmitBatch(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		h.logger.Warnw("batch_submit_form_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid multipart form",
		})
	}

	headers := form.File[filesField]
	if len(headers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: fmt.Sprintf("no files in field %q", filesField),
		})
	}

	files := make([]domain.SourceFile, 0, len(headers))
	for _, fh := range headers {
		file, err := readPart(fh)
		if err != nil {
			h.logger.Warnw("batch_submit_read_failed", "name", fh.Filename, "error", err)
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: "failed to read " + fh.Filename,
			})
		}
		files = append(files, file)
	}

	h.logger.Infow("batch_submit_request", "files", len(files))
	snap, rejected, err := h.service.Submit(c.UserContext(), files)
	if rejected == nil {
		rejected = []domain.Rejection{}
	}
	switch {
	case errors.Is(err, services.ErrBatchAllRejected):
		h.logger.Warnw("batch_submit_all_rejected", "files", len(files))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.RejectedBatchResponse{
			Error:    "no file was accepted",
			Rejected: rejected,
		})
	case errors.Is(err, services.ErrBatchEmpty):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrServiceShuttingDown):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: err.Error()})
	case err != nil:
		h.logger.Errorw("batch_submit_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	h.logger.Infow("batch_submit_success", "batch_id", snap.ID, "admitted", len(snap.Tasks), "rejected", len(rejected))
	return c.Status(fiber.StatusAccepted).JSON(dto.SubmitBatchResponse{
		Batch:    snap,
		Rejected: rejected,
	})
}

func readPart(fh *multipart.FileHeader) (domain.SourceFile, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.SourceFile{}, err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return domain.SourceFile{}, err
	}
	return domain.SourceFile{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

func (h *BatchHandler) GetBatches(c *fiber.Ctx) error {
	return c.JSON(h.service.GetBatches())
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	snap, err := h.service.GetBatch(c.Params("id"))
	if err != nil {
		return h.fail(c, "batch_get", err)
	}
	return c.JSON(snap)
}

func (h *BatchHandler) CancelBatch(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.CancelBatch(id); err != nil {
		return h.fail(c, "batch_cancel", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "cancel_requested"})
}

func (h *BatchHandler) CancelTask(c *fiber.Ctx) error {
	if err := h.service.CancelTask(c.Params("id"), c.Params("taskId")); err != nil {
		return h.fail(c, "task_cancel", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "cancel_requested"})
}

func (h *BatchHandler) ReleasePreview(c *fiber.Ctx) error {
	if err := h.service.ReleasePreview(c.Params("id"), c.Params("taskId")); err != nil {
		return h.fail(c, "preview_release", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BatchHandler) GetHistory(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid limit"})
		}
		limit = n
	}

	records, err := h.service.History(c.UserContext(), limit)
	if err != nil {
		h.logger.Errorw("batch_history_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(records)
}

func (h *BatchHandler) fail(c *fiber.Ctx, op string, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrBatchNotFound), errors.Is(err, services.ErrTaskNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, upload.ErrPreviewReleased), errors.Is(err, upload.ErrTaskNotTerminal):
		status = fiber.StatusConflict
	}
	if status == fiber.StatusInternalServerError {
		h.logger.Errorw(op+"_failed", "batch_id", c.Params("id"), "error", err)
	} else {
		h.logger.Warnw(op+"_rejected", "batch_id", c.Params("id"), "status", status, "error", err)
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
}
