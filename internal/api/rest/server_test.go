package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/metrics"
	"github.com/oshokin/fire-sentinel/internal/service/sentinel"
)

func newTestServer(t *testing.T) (*sentinel.Board, *httptest.Server) {
	t.Helper()

	board := sentinel.NewBoard()
	m := metrics.New()
	m.FrameRead(true)

	srv := httptest.NewServer(NewServer(context.Background(), board, m.Handler()).Handler())
	t.Cleanup(srv.Close)

	return board, srv
}

func getJSON(t *testing.T, url string, target any) int {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))

	return resp.StatusCode
}

// TestHealth reports degraded, not failed, when the actuator link is down.
func TestHealth(t *testing.T) {
	t.Parallel()

	board, srv := newTestServer(t)

	var health HealthResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "IDLE", health.Phase)

	board.Publish(&fire.Status{Phase: fire.PhaseAlarmed, LinkHealthy: false})

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	require.Equal(t, "degraded", health.Status)
	require.Equal(t, "ALARMED", health.Phase)
	require.False(t, health.LinkHealthy)
	require.Nil(t, health.NotifierConnected)
}

// TestHealth_NotifierDisconnected degrades while the alert transport is down.
func TestHealth_NotifierDisconnected(t *testing.T) {
	t.Parallel()

	var connected atomic.Bool

	srv := httptest.NewServer(NewServer(context.Background(), sentinel.NewBoard(), nil,
		WithNotifierCheck(connected.Load)).Handler())
	t.Cleanup(srv.Close)

	var health HealthResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	require.Equal(t, "degraded", health.Status)
	require.NotNil(t, health.NotifierConnected)
	require.False(t, *health.NotifierConnected)

	connected.Store(true)

	health = HealthResponse{}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	require.Equal(t, "ok", health.Status)
	require.True(t, *health.NotifierConnected)
}

// TestStatus returns the status document.
func TestStatus(t *testing.T) {
	t.Parallel()

	board, srv := newTestServer(t)
	board.Publish(&fire.Status{
		Phase:       fire.PhaseConfirming,
		EpisodeID:   "ep-7",
		Remaining:   2 * time.Second,
		LinkHealthy: true,
		Counters:    fire.Counters{Frames: 12},
	})

	var body map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/status", &body))
	require.Equal(t, "CONFIRMING", body["phase"])
	require.Equal(t, "ep-7", body["episode_id"])
	require.InDelta(t, 2.0, body["remaining_seconds"], 1e-9)
	require.InDelta(t, 12, body["counters"].(map[string]any)["frames"], 0)
}

// TestMetricsRoute exposes the registry.
func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	m := metrics.New()
	m.FrameFailed()

	NewServer(context.Background(), sentinel.NewBoard(), m.Handler()).
		Handler().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `fire_sentinel_frames_total{result="error"} 1`)

	rec = httptest.NewRecorder()
	NewServer(context.Background(), sentinel.NewBoard(), nil).
		Handler().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

// TestWebsocketStream sends the current status on connect and every update after.
func TestWebsocketStream(t *testing.T) {
	t.Parallel()

	board, srv := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first map[string]any
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "IDLE", first["phase"])

	board.Publish(&fire.Status{Phase: fire.PhaseAlarmed, EpisodeID: "ep-9", LinkHealthy: true})

	var next map[string]any
	require.NoError(t, conn.ReadJSON(&next))
	require.Equal(t, "ALARMED", next["phase"])
	require.Equal(t, "ep-9", next["episode_id"])
}
