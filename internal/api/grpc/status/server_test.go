package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
)

// fakeBoard serves a fixed status and a controllable update stream.
type fakeBoard struct {
	status  *fire.Status
	updates chan *fire.Status
}

func (b *fakeBoard) Snapshot() *fire.Status { return b.status.Clone() }

func (b *fakeBoard) Subscribe() (<-chan *fire.Status, func()) { return b.updates, func() {} }

// TestServer_GetStatus converts the snapshot into a Struct.
func TestServer_GetStatus(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeBoard{status: &fire.Status{
		Phase:     fire.PhaseConfirming,
		EpisodeID: "ep-3",
		Remaining: 1500 * time.Millisecond,
	}})

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(ActorMetadataKey, "ops@console"))

	resp, err := s.GetStatus(ctx, new(emptypb.Empty))
	require.NoError(t, err)

	fields := resp.AsMap()
	require.Equal(t, "CONFIRMING", fields["phase"])
	require.Equal(t, "ep-3", fields["episode_id"])
	require.InDelta(t, 1.5, fields["remaining_seconds"], 1e-9)
	require.Equal(t, "ops@console", actorFromContext(ctx))
	require.Empty(t, actorFromContext(context.Background()))
}

// TestWatchHealth follows link health transitions.
func TestWatchHealth(t *testing.T) {
	t.Parallel()

	board := &fakeBoard{updates: make(chan *fire.Status)}
	hs := health.NewServer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		WatchHealth(ctx, board, hs)
	}()

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		require.NoError(t, err)

		return resp.GetStatus()
	}

	board.updates <- &fire.Status{LinkHealthy: true}
	board.updates <- &fire.Status{LinkHealthy: false}
	// A third send guarantees the second one has been applied.
	board.updates <- &fire.Status{LinkHealthy: false}

	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())

	board.updates <- &fire.Status{LinkHealthy: true}
	board.updates <- &fire.Status{LinkHealthy: true}

	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check())

	cancel()
	<-done
}
