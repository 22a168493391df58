package sentinel

import (
	"context"
	"time"

	"github.com/oshokin/fire-sentinel/internal/actuator"
	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/logger"
	"github.com/oshokin/fire-sentinel/internal/metrics"
	"github.com/oshokin/fire-sentinel/internal/notify"
)

// Controller applies machine effects to the outside world. It is owned by the
// loop goroutine.
type Controller struct {
	machine    *fire.Machine
	link       actuator.Link
	dispatcher *notify.Dispatcher
	board      *Board
	metrics    *metrics.Metrics
	events     EventSink

	caption   string
	recipient string
	now       func() time.Time

	// ticket belongs to the live episode; nil when nothing was dispatched.
	ticket      *notify.Ticket
	linkHealthy bool
	lastCommand fire.Command
	counters    fire.Counters
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithBoard publishes status updates to b.
func WithBoard(b *Board) ControllerOption {
	return func(c *Controller) {
		c.board = b
	}
}

// WithMetrics records counters on m.
func WithMetrics(m *metrics.Metrics) ControllerOption {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithEvents forwards episode transitions to sink.
func WithEvents(sink EventSink) ControllerOption {
	return func(c *Controller) {
		c.events = sink
	}
}

// WithAlert sets the alert caption and recipient.
func WithAlert(caption, recipient string) ControllerOption {
	return func(c *Controller) {
		c.caption = caption
		c.recipient = recipient
	}
}

// WithClock replaces time.Now. The clock must carry monotonic readings in production.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates a controller around machine.
func NewController(
	machine *fire.Machine,
	link actuator.Link,
	dispatcher *notify.Dispatcher,
	opts ...ControllerOption,
) *Controller {
	c := &Controller{
		machine:     machine,
		link:        link,
		dispatcher:  dispatcher,
		now:         time.Now,
		linkHealthy: true,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Step feeds one frame signal to the machine and applies its effects. frame
// is only read when the alarm fires, to attach it to the notification.
func (c *Controller) Step(ctx context.Context, frame Frame, signal bool) View {
	now := c.now()
	previous := c.machine.Episode()

	c.counters.Frames++
	c.metrics.FrameRead(signal)

	effects := c.machine.Step(signal, now)

	for _, cmd := range effects.Commands {
		c.send(ctx, cmd)
	}

	episode := c.machine.Episode()

	if effects.Transition != fire.TransitionNone {
		c.transition(ctx, effects.Transition, episodeID(episode, previous))
	}

	if effects.Dispatch && episode != nil {
		c.dispatch(ctx, frame, episode)
	}

	c.publish(episode, effects.Remaining)

	return View{
		Phase:     c.machine.Phase(),
		Remaining: effects.Remaining,
		EpisodeID: episodeID(episode, nil),
	}
}

// FrameFailed records a failed frame read without touching the machine.
func (c *Controller) FrameFailed() {
	c.counters.FrameErrors++
	c.metrics.FrameFailed()
	c.publish(c.machine.Episode(), 0)
}

// Shutdown stops the actuator and returns it to its initial state.
func (c *Controller) Shutdown(ctx context.Context) {
	c.send(ctx, fire.CommandStop)
	c.send(ctx, fire.CommandReset)
	c.publish(c.machine.Episode(), 0)
}

// send writes one command. Failures are logged and counted, never returned.
func (c *Controller) send(ctx context.Context, cmd fire.Command) {
	err := c.link.Send(ctx, cmd)
	c.metrics.CommandSent(cmd, err)
	c.lastCommand = cmd

	if err != nil {
		c.counters.LinkErrors++

		if c.linkHealthy {
			c.linkHealthy = false
			logger.ErrorKV(ctx, "Actuator link failing", "command", cmd, "error", err)
		} else {
			logger.DebugKV(ctx, "Actuator command failed", "command", cmd, "error", err)
		}

		return
	}

	if !c.linkHealthy {
		c.linkHealthy = true
		logger.InfoKV(ctx, "Actuator link recovered", "command", cmd)
	}

	logger.DebugKV(ctx, "Actuator command sent", "command", cmd)
}

// dispatch encodes the trigger frame and hands the alert to the dispatcher.
func (c *Controller) dispatch(ctx context.Context, frame Frame, episode *fire.Episode) {
	var image []byte

	if frame != nil {
		encoded, err := frame.JPEG()
		if err != nil {
			logger.ErrorKV(ctx, "Failed to encode alert frame, sending without image", "error", err)
		} else {
			image = encoded
		}
	}

	alert := notify.Alert{
		Image:       image,
		Caption:     c.caption,
		Recipient:   c.recipient,
		EpisodeID:   episode.ID.String(),
		TriggeredAt: c.now(),
	}

	c.ticket = c.dispatcher.Dispatch(ctx, alert)
	c.counters.Notifications++
}

// transition logs, counts and forwards an episode lifecycle change.
func (c *Controller) transition(ctx context.Context, t fire.Transition, id string) {
	ctx = logger.WithKV(ctx, "episode_id", id)

	switch t {
	case fire.TransitionStarted:
		c.counters.Episodes++
		c.ticket = nil
		logger.Info(ctx, "Fire detected, confirming")
	case fire.TransitionDiscarded:
		logger.Info(ctx, "Detection lost before confirmation, episode discarded")
	case fire.TransitionAlarmed:
		c.counters.Alarms++
		logger.Warn(ctx, "Fire confirmed, alarm raised")
	case fire.TransitionCleared:
		logger.Info(ctx, "Cooldown elapsed, alarm cleared")
	case fire.TransitionNone:
	}

	c.metrics.Transition(t)

	if c.events == nil {
		return
	}

	event := fire.Event{
		Type:      t,
		EpisodeID: id,
		Phase:     c.machine.Phase().String(),
		At:        c.now(),
	}

	if err := c.events.PublishEvent(ctx, event); err != nil {
		logger.ErrorKV(ctx, "Failed to publish episode event", "event", t, "error", err)
	}
}

// publish writes the current status to the board.
func (c *Controller) publish(episode *fire.Episode, remaining time.Duration) {
	c.metrics.SetPhase(c.machine.Phase())

	if c.board == nil {
		return
	}

	status := &fire.Status{
		Phase:       c.machine.Phase(),
		Remaining:   remaining,
		LinkHealthy: c.linkHealthy,
		LastCommand: c.lastCommand,
		UpdatedAt:   time.Now(),
		Counters:    c.counters,
	}

	if episode != nil {
		status.EpisodeID = episode.ID.String()
		status.EpisodeStartedAt = wallClock(episode.StartedAt, c.now())
		status.Confirmed = episode.Confirmed
		status.Notified = episode.Notified
		status.Delivered = c.ticket.Delivered()
	}

	c.board.Publish(status)
}

// episodeID prefers the live episode and falls back to the one that just ended.
func episodeID(live, previous *fire.Episode) string {
	switch {
	case live != nil:
		return live.ID.String()
	case previous != nil:
		return previous.ID.String()
	default:
		return ""
	}
}

// wallClock converts a monotonic instant to wall time relative to now.
func wallClock(instant, now time.Time) time.Time {
	return time.Now().Add(-now.Sub(instant)).Round(time.Millisecond)
}
