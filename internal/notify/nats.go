package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Alert message headers.
const (
	HeaderRecipient   = "Fire-Recipient"
	HeaderCaption     = "Fire-Caption"
	HeaderEpisodeID   = "Fire-Episode-Id"
	HeaderTriggeredAt = "Fire-Triggered-At"
	HeaderContentType = "Content-Type"

	contentTypeJPEG = "image/jpeg"

	// defaultFlushTimeout bounds the server round trip when the caller set no deadline.
	defaultFlushTimeout = 5 * time.Second
)

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// NATSNotifier publishes alerts to a NATS subject. The JPEG is the payload;
// caption and recipient travel as headers for the delivery bridge.
type NATSNotifier struct {
	conn    Publisher
	subject string
}

// NewNATSNotifier creates a notifier publishing to subject.
func NewNATSNotifier(conn Publisher, subject string) *NATSNotifier {
	return &NATSNotifier{
		conn:    conn,
		subject: subject,
	}
}

// Notify publishes the alert and waits for the server to acknowledge the flush.
func (n *NATSNotifier) Notify(ctx context.Context, alert Alert) error {
	if err := n.conn.PublishMsg(NewAlertMsg(n.subject, alert)); err != nil {
		return fmt.Errorf("publish alert to %s: %w", n.subject, err)
	}

	// FlushWithContext refuses contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, defaultFlushTimeout)
		defer cancel()
	}

	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush alert to %s: %w", n.subject, err)
	}

	return nil
}

// NewAlertMsg builds the NATS message for alert.
func NewAlertMsg(subject string, alert Alert) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = alert.Image

	msg.Header.Set(HeaderRecipient, alert.Recipient)
	msg.Header.Set(HeaderCaption, alert.Caption)
	msg.Header.Set(HeaderEpisodeID, alert.EpisodeID)
	msg.Header.Set(HeaderTriggeredAt, alert.TriggeredAt.UTC().Format(time.RFC3339Nano))

	if len(alert.Image) > 0 {
		msg.Header.Set(HeaderContentType, contentTypeJPEG)
	}

	return msg
}
