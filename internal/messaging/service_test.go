package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
)

// fakePublisher captures raw publishes.
type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data

	return p.err
}

// TestPublishEvent encodes events as JSON on the events subject.
func TestPublishEvent(t *testing.T) {
	t.Parallel()

	pub := new(fakePublisher)
	s := newService(pub, "fire.events")

	event := fire.Event{
		Type:      fire.TransitionAlarmed,
		EpisodeID: "ep-1",
		Phase:     "ALARMED",
		At:        time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, s.PublishEvent(context.Background(), event))
	require.Equal(t, "fire.events", pub.subject)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.data, &decoded))
	require.Equal(t, "alarm_raised", decoded["type"])
	require.Equal(t, "ep-1", decoded["episode_id"])
	require.Equal(t, "ALARMED", decoded["phase"])
	require.Equal(t, "2026-10-17T09:00:00Z", decoded["at"])

	pub.err = errors.New("connection closed")
	require.ErrorIs(t, s.PublishEvent(context.Background(), event), pub.err)
}

// TestConnect_RequiresURL rejects an empty server URL.
func TestConnect_RequiresURL(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), "", "fire.events")
	require.ErrorIs(t, err, ErrURLRequired)
}

// TestService_WithoutConnection is safe to query and shut down.
func TestService_WithoutConnection(t *testing.T) {
	t.Parallel()

	s := newService(new(fakePublisher), "fire.events")

	require.False(t, s.Connected())
	require.Nil(t, s.Conn())
	require.NotPanics(t, func() { s.Shutdown(context.Background()) })
}

// TestConnect_ServerDown returns a retrying connection instead of failing, and
// shuts it down promptly.
func TestConnect_ServerDown(t *testing.T) {
	t.Parallel()

	s, err := Connect(context.Background(), "nats://127.0.0.1:1", "fire.events")
	require.NoError(t, err)
	require.NotNil(t, s.Conn())
	require.False(t, s.Connected())

	require.NotPanics(t, func() {
		_ = s.PublishEvent(context.Background(), fire.Event{Type: fire.TransitionStarted})
	})

	done := make(chan struct{})

	go func() {
		defer close(done)

		s.Shutdown(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(2 * DefaultDrainTimeout):
		t.Fatal("shutdown did not return")
	}

	require.True(t, s.Conn().IsClosed())
}
