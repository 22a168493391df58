package actuator

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/logger"
)

// Offline is a Link whose transport failed to open. Every send fails so the
// failure stays visible while the control loop keeps running.
type Offline struct {
	cause error
}

// NewOffline returns a Link that reports cause on every send.
func NewOffline(cause error) *Offline {
	return &Offline{cause: cause}
}

// Send always fails with ErrLinkOffline.
func (o *Offline) Send(_ context.Context, cmd fire.Command) error {
	return fmt.Errorf("%w: %s not sent: %w", ErrLinkOffline, cmd, o.cause)
}

// Close does nothing.
func (o *Offline) Close() error {
	return nil
}

// Discard is a Link used when no actuator is configured. It only logs.
type Discard struct{}

// Send logs the command at debug level.
func (Discard) Send(ctx context.Context, cmd fire.Command) error {
	if !cmd.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, string(cmd))
	}

	logger.DebugKV(ctx, "Actuator disabled, command dropped", "command", cmd)

	return nil
}

// Close does nothing.
func (Discard) Close() error {
	return nil
}

// Settings describes how to reach the actuator.
type Settings struct {
	Endpoint    string
	BaudRate    int
	ReadTimeout time.Duration
	SettleDelay time.Duration
	Aliases     map[fire.Command]string
}

// Dial opens the configured endpoint. An empty endpoint yields Discard; an
// endpoint that cannot be opened yields Offline and the open error, so callers
// can log it and continue.
func Dial(ctx context.Context, s Settings) (Link, error) {
	return dial(ctx, s.Endpoint, func() (Link, error) {
		return Open(s.Endpoint, s.BaudRate, s.ReadTimeout, WithSettleDelay(s.SettleDelay), WithAliases(s.Aliases))
	})
}

func dial(ctx context.Context, endpoint string, open func() (Link, error)) (Link, error) {
	if endpoint == "" {
		logger.Info(ctx, "No actuator endpoint configured, commands will be logged only")

		return Discard{}, nil
	}

	link, err := open()
	if err != nil {
		return NewOffline(err), err
	}

	return link, nil
}
