package handler_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/training-progress-api/internal/dto"
	"github.com/noah-isme/training-progress-api/internal/handler"
	"github.com/noah-isme/training-progress-api/internal/models"
	"github.com/noah-isme/training-progress-api/internal/service"
)

type stubSubscriber struct {
	subscribed []uint
}

func (s *stubSubscriber) Subscribe(sessionID uint) (<-chan models.ProgressEvent, func()) {
	s.subscribed = append(s.subscribed, sessionID)
	ch := make(chan models.ProgressEvent)
	return ch, func() { close(ch) }
}

// signallingSubscriber reports each subscription so tests publish only after the
// websocket side is listening.
type signallingSubscriber struct {
	bus        service.ProgressEventBus
	subscribed chan uint
}

func (s *signallingSubscriber) Subscribe(sessionID uint) (<-chan models.ProgressEvent, func()) {
	events, cancel := s.bus.Subscribe(sessionID)
	s.subscribed <- sessionID
	return events, cancel
}

func TestStreamHandler_RequiresUpgrade(t *testing.T) {
	subscriber := &stubSubscriber{}
	app, api := newTestApp(3, "trainee")
	handler.NewStreamHandler(subscriber, testLogger()).Register(api)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/sessions/100/stream", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
	require.Empty(t, subscriber.subscribed)
}

func TestStreamHandler_PushesSessionEvents(t *testing.T) {
	bus := service.NewProgressEventBus(nil, "", nil, testLogger())
	subscriber := &signallingSubscriber{bus: bus, subscribed: make(chan uint, 1)}

	app, api := newTestApp(3, "trainee")
	handler.NewStreamHandler(subscriber, testLogger()).Register(api)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	url := fmt.Sprintf("ws://%s/api/sessions/100/stream", ln.Addr().String())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case sessionID := <-subscriber.subscribed:
		require.Equal(t, uint(100), sessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("stream never subscribed")
	}

	score := 88.0
	require.NoError(t, bus.Publish(context.Background(), []models.ProgressEvent{
		{EventID: "other-session", SessionID: 200, NewStatus: models.ProgressStatusSkipped},
		{
			EventID:        "evt-1",
			SessionID:      100,
			EnrollmentID:   1,
			ComponentID:    12,
			PreviousStatus: models.ProgressStatusInProgress,
			NewStatus:      models.ProgressStatusPassed,
			Score:          &score,
			Attempts:       1,
		},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var received dto.ProgressEventResponse
	require.NoError(t, conn.ReadJSON(&received))
	require.Equal(t, "evt-1", received.EventID)
	require.Equal(t, "PASSED", received.NewStatus)
	require.InDelta(t, 88.0, *received.Score, 0.001)
}
