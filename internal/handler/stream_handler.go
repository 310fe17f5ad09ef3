package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/training-progress-api/internal/dto"
	"github.com/noah-isme/training-progress-api/internal/middleware"
	"github.com/noah-isme/training-progress-api/internal/models"
)

const streamKeepalive = 30 * time.Second

// ProgressSubscriber hands out per-session event feeds.
type ProgressSubscriber interface {
	Subscribe(sessionID uint) (<-chan models.ProgressEvent, func())
}

// StreamHandler pushes progress events for one session over a websocket.
type StreamHandler struct {
	subscriber ProgressSubscriber
	logger     zerolog.Logger
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(subscriber ProgressSubscriber, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		subscriber: subscriber,
		logger:     logger.With().Str("component", "stream_handler").Logger(),
	}
}

// Register wires the websocket upgrade route on the API root.
func (h *StreamHandler) Register(router fiber.Router) {
	router.Get("/sessions/:sessionId/stream", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if _, ok := parseUintParam(c, "sessionId"); !ok {
			return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
		}
		c.Locals("request_ctx", requestContext(c))
		return c.Next()
	}, websocket.New(h.handleConnection))
}

func (h *StreamHandler) handleConnection(conn *websocket.Conn) {
	sessionID, err := strconv.ParseUint(conn.Params("sessionId"), 10, 64)
	if err != nil || sessionID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "invalid session id"))
		_ = conn.Close()
		return
	}

	ctx, _ := conn.Locals("request_ctx").(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}
	logger := h.logger.With().
		Uint64("session_id", sessionID).
		Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
		Logger()

	events, cancel := h.subscriber.Subscribe(uint(sessionID))
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logger.Debug().Err(err).Msg("progress stream read loop ended")
				return
			}
		}
	}()

	logger.Info().Msg("progress stream connected")
	defer logger.Info().Msg("progress stream disconnected")

	ticker := time.NewTicker(streamKeepalive)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"))
				return
			}
			if err := conn.WriteJSON(dto.NewProgressEventResponse(event)); err != nil {
				logger.Debug().Err(err).Msg("progress stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				logger.Debug().Err(err).Msg("progress stream ping failed")
				return
			}
		case <-closed:
			return
		}
	}
}
