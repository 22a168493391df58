//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/oshokin/fire-sentinel/internal/api/grpc/status"
	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/service/sentinel"
)

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// startBufconn serves the status services on an in-memory listener.
func startBufconn(t *testing.T, board *sentinel.Board) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)

	go func() {
		served <- status.ServeListener(ctx, lis, board)
	}()

	client, err := Dial(
		context.Background(),
		"passthrough:///bufnet",
		WithActor(Actor{Hostname: "host", Username: "tester"}),
		WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, client.Close())
		cancel()
		require.NoError(t, <-served)
	})

	return client
}

// TestClient_GetStatusAndHealth exercises both services end-to-end over bufconn.
func TestClient_GetStatusAndHealth(t *testing.T) {
	t.Parallel()

	board := sentinel.NewBoard()
	board.Publish(&fire.Status{
		Phase:       fire.PhaseAlarmed,
		EpisodeID:   "ep-1",
		Notified:    true,
		LinkHealthy: true,
		LastCommand: fire.CommandFire,
		Counters:    fire.Counters{Alarms: 1},
	})

	client := startBufconn(t, board)

	doc, err := client.GetStatus(context.Background())
	require.NoError(t, err)

	fields := doc.AsMap()
	require.Equal(t, "ALARMED", fields["phase"])
	require.Equal(t, "ep-1", fields["episode_id"])
	require.Equal(t, true, fields["notified"])
	require.Equal(t, "FIRE", fields["last_command"])
	require.InDelta(t, 1, fields["counters"].(map[string]any)["alarms"], 0)

	require.Eventually(t, func() bool {
		st, healthErr := client.Health(context.Background())
		return healthErr == nil && st == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	board.Publish(&fire.Status{Phase: fire.PhaseIdle, LinkHealthy: false})

	require.Eventually(t, func() bool {
		st, healthErr := client.Health(context.Background())
		return healthErr == nil && st == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}
