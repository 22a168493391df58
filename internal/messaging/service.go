package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/logger"
)

const (
	// ClientName identifies the process to the NATS server.
	ClientName = "fire-sentinel"
	// DefaultConnectTimeout bounds the initial connection.
	DefaultConnectTimeout = 5 * time.Second
	// DefaultReconnectWait is the pause between reconnect attempts.
	DefaultReconnectWait = 2 * time.Second
	// DefaultMaxReconnects keeps reconnecting forever.
	DefaultMaxReconnects = -1
	// DefaultFlushTimeout bounds the final flush before draining.
	DefaultFlushTimeout = 2 * time.Second
	// DefaultDrainTimeout bounds draining on shutdown.
	DefaultDrainTimeout = 5 * time.Second
)

// ErrURLRequired is returned when connecting without a server URL.
var ErrURLRequired = errors.New("nats url must be provided")

// publisher is the part of *nats.Conn used for events.
type publisher interface {
	Publish(subject string, data []byte) error
}

// Service publishes JSON episode events and exposes the connection for the alert notifier.
type Service struct {
	conn          *nats.Conn
	pub           publisher
	eventsSubject string

	// closed is closed by the client once the connection is fully shut down.
	closed    chan struct{}
	closeOnce sync.Once
}

// Connect dials the NATS server at url. An unreachable server is not an
// error: the client keeps retrying in the background, buffering events and
// failing alert flushes until it connects. Reconnects are logged through ctx's logger.
func Connect(ctx context.Context, url, eventsSubject string) (*Service, error) {
	if url == "" {
		return nil, ErrURLRequired
	}

	ctx = logger.WithName(ctx, "nats")

	s := newService(nil, eventsSubject)

	opts := []nats.Option{
		nats.Name(ClientName),
		nats.Timeout(DefaultConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(DefaultReconnectWait),
		nats.MaxReconnects(DefaultMaxReconnects),
		nats.DrainTimeout(DefaultDrainTimeout),
		nats.ConnectHandler(func(c *nats.Conn) {
			logger.InfoKV(ctx, "NATS connection established", "url", c.ConnectedUrlRedacted())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			s.markClosed()
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WarnKV(ctx, "NATS connection lost", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.InfoKV(ctx, "NATS connection restored", "url", c.ConnectedUrlRedacted())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}

	if !conn.IsConnected() {
		logger.WarnKV(ctx, "NATS server unreachable, retrying in the background", "url", url)
	}

	s.conn = conn
	s.pub = conn

	return s, nil
}

func newService(pub publisher, eventsSubject string) *Service {
	return &Service{
		pub:           pub,
		eventsSubject: eventsSubject,
		closed:        make(chan struct{}),
	}
}

func (s *Service) markClosed() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Conn returns the underlying connection.
func (s *Service) Conn() *nats.Conn {
	return s.conn
}

// Connected reports whether the connection is currently up.
func (s *Service) Connected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// PublishEvent sends event as JSON on the events subject. The client buffers
// the message, so the control loop never waits for the server.
func (s *Service) PublishEvent(_ context.Context, event fire.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err = s.pub.Publish(s.eventsSubject, payload); err != nil {
		return fmt.Errorf("publish event to %s: %w", s.eventsSubject, err)
	}

	return nil
}

// Shutdown flushes buffered messages, drains the connection and waits, within
// DefaultDrainTimeout, until the client reports it closed.
func (s *Service) Shutdown(ctx context.Context) {
	if s.conn == nil {
		return
	}

	if s.conn.IsConnected() {
		if err := s.conn.FlushTimeout(DefaultFlushTimeout); err != nil {
			logger.WarnKV(ctx, "Failed to flush NATS connection", "error", err)
		}
	}

	if err := s.conn.Drain(); err != nil {
		logger.WarnKV(ctx, "Failed to drain NATS connection, closing", "error", err)
		s.conn.Close()
	}

	timer := time.NewTimer(DefaultDrainTimeout)
	defer timer.Stop()

	select {
	case <-s.closed:
	case <-timer.C:
		logger.Warn(ctx, "NATS connection did not close in time")
		s.conn.Close()
	}
}
