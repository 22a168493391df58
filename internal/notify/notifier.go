package notify

import (
	"context"
	"time"

	"github.com/oshokin/fire-sentinel/internal/logger"
)

// Alert is one human-facing fire notification.
type Alert struct {
	// Image is the JPEG-encoded frame that triggered the alarm; may be empty.
	Image []byte
	// Caption is the static alert text.
	Caption string
	// Recipient is the configured destination.
	Recipient string
	// EpisodeID identifies the fire episode.
	EpisodeID string
	// TriggeredAt is the wall-clock trigger time.
	TriggeredAt time.Time
}

// Notifier sends alerts. Implementations may block for seconds and may fail.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, alert Alert) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, alert Alert) error {
	return f(ctx, alert)
}

// LogNotifier only logs alerts. It is used when no transport is configured.
type LogNotifier struct{}

// Notify logs the alert at warning level.
func (LogNotifier) Notify(ctx context.Context, alert Alert) error {
	logger.WarnKV(ctx, "Fire alert (no transport configured)",
		"recipient", alert.Recipient,
		"caption", alert.Caption,
		"episode_id", alert.EpisodeID,
		"image_bytes", len(alert.Image),
	)

	return nil
}
