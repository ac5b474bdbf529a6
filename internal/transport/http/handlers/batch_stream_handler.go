package handlers

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
	"github.com/supplyhub/backend/internal/transport/http/dto"
)

const streamWriteTimeout = 10 * time.Second

type BatchStreamHandler struct {
	service ports.UploadService
	logger  *logger.Logger
}

func NewBatchStreamHandler(service ports.UploadService, logger *logger.Logger) *BatchStreamHandler {
	return &BatchStreamHandler{service: service, logger: logger}
}

// Handle streams the snapshot of a batch followed by its live task events. The
// connection is closed after the settled frame.
func (h *BatchStreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()
	batchID := c.Params("id")

	sub, err := h.service.Subscribe(batchID)
	if err != nil {
		h.logger.Warnw("batch_stream_subscribe_failed", "batch_id", batchID, "error", err)
		_ = h.write(c, dto.StreamMessage{Type: dto.StreamError, Error: err.Error()})
		return
	}
	defer sub.Cancel()

	h.logger.Infow("batch_stream_opened", "batch_id", batchID, "subscriber", sub.ID)
	if err := h.write(c, dto.StreamMessage{Type: dto.StreamSnapshot, Batch: &sub.Snapshot}); err != nil {
		return
	}

	// The client never sends anything we need; reading only detects a close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				h.logger.Infow("batch_stream_closed", "batch_id", batchID, "subscriber", sub.ID)
				return
			}
			if err := h.write(c, dto.EventToMessage(ev)); err != nil {
				h.logger.Warnw("batch_stream_write_failed", "batch_id", batchID, "error", err)
				return
			}
		case <-gone:
			h.logger.Infow("batch_stream_client_left", "batch_id", batchID, "subscriber", sub.ID)
			return
		}
	}
}

func (h *BatchStreamHandler) write(c *websocket.Conn, msg dto.StreamMessage) error {
	if err := c.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return c.WriteJSON(msg)
}
