package actuator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/logger"
)

// Link is a best-effort, output-only command channel to the actuator.
type Link interface {
	// Send writes one command and waits for the settle delay.
	Send(ctx context.Context, cmd fire.Command) error
	// Close releases the underlying transport.
	Close() error
}

var (
	// ErrLinkOffline is returned by links whose transport could not be opened.
	ErrLinkOffline = errors.New("actuator link offline")
	// ErrLinkClosed is returned when sending on a closed link.
	ErrLinkClosed = errors.New("actuator link closed")
	// ErrInvalidCommand is returned for commands outside the vocabulary.
	ErrInvalidCommand = errors.New("invalid actuator command")
)

// maxDrainReads bounds the fallback drain loop so a chatty receiver cannot stall a send.
const maxDrainReads = 64

// port is the subset of serial.Port the link uses.
type port interface {
	io.ReadWriter
	ResetInputBuffer() error
	Close() error
}

// SerialLink sends newline-terminated ASCII commands over a serial port.
type SerialLink struct {
	port    port
	aliases map[fire.Command]string
	settle  time.Duration

	// mu serialises writes so a command and its settle delay are never interleaved.
	mu     sync.Mutex
	closed bool
}

// Option configures a SerialLink.
type Option func(*SerialLink)

// WithSettleDelay sets the pause after each command.
func WithSettleDelay(d time.Duration) Option {
	return func(l *SerialLink) {
		if d >= 0 {
			l.settle = d
		}
	}
}

// WithAliases maps commands to firmware-specific tokens.
func WithAliases(aliases map[fire.Command]string) Option {
	return func(l *SerialLink) {
		for cmd, token := range aliases {
			l.aliases[cmd] = token
		}
	}
}

// Open opens the serial endpoint at the given baud rate. The read timeout
// bounds backlog draining.
func Open(endpoint string, baudRate int, readTimeout time.Duration, opts ...Option) (*SerialLink, error) {
	//nolint:exhaustruct // 8N1 defaults are what the firmware expects.
	p, err := serial.Open(endpoint, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", endpoint, err)
	}

	if err = p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()

		return nil, fmt.Errorf("set read timeout on %s: %w", endpoint, err)
	}

	return newSerialLink(p, opts...), nil
}

func newSerialLink(p port, opts ...Option) *SerialLink {
	l := &SerialLink{
		port:    p,
		aliases: make(map[fire.Command]string),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Send drains the receiver backlog, writes the command and waits for the
// settle delay. Cancelling ctx only shortens the settle wait.
func (l *SerialLink) Send(ctx context.Context, cmd fire.Command) error {
	payload, err := Encode(cmd, l.aliases)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLinkClosed
	}

	l.drain(ctx)

	if _, err = l.port.Write(payload); err != nil {
		return fmt.Errorf("write %s: %w", cmd, err)
	}

	settle(ctx, l.settle)

	return nil
}

// Close closes the port. It is safe to call more than once.
func (l *SerialLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true

	if err := l.port.Close(); err != nil {
		return fmt.Errorf("close serial port: %w", err)
	}

	return nil
}

// drain discards unread echoes from the receiver. Errors are not fatal: a
// stale byte only risks desynchronising a receiver we never read from.
func (l *SerialLink) drain(ctx context.Context) {
	if err := l.port.ResetInputBuffer(); err == nil {
		return
	}

	buf := make([]byte, 64)

	for range maxDrainReads {
		n, err := l.port.Read(buf)
		if n == 0 || err != nil {
			return
		}

		logger.DebugKV(ctx, "Discarded actuator backlog", "bytes", n)
	}
}

// Encode renders cmd as its wire token plus a newline.
func Encode(cmd fire.Command, aliases map[fire.Command]string) ([]byte, error) {
	if !cmd.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, string(cmd))
	}

	token := string(cmd)
	if alias, ok := aliases[cmd]; ok && alias != "" {
		token = alias
	}

	return []byte(token + "\n"), nil
}

// settle waits for d or until ctx is done.
func settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
