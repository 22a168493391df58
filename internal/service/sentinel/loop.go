package sentinel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oshokin/fire-sentinel/internal/actuator"
	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/logger"
	"github.com/oshokin/fire-sentinel/internal/notify"
)

// ErrLoopPanic wraps a panic recovered from the control loop.
var ErrLoopPanic = errors.New("control loop panicked")

// LoopConfig holds the loop parameters.
type LoopConfig struct {
	// Threshold is the minimum confidence counted as fire.
	Threshold float64
	// Labels restricts accepted detection labels; empty accepts any.
	Labels []string
	// RetryDelay is the pause after a failed frame read.
	RetryDelay time.Duration
	// ShutdownGrace bounds the wait for in-flight notifications; zero detaches them.
	ShutdownGrace time.Duration
}

// Loop drives acquisition, detection and the controller on one goroutine.
type Loop struct {
	source     Source
	detector   Detector
	renderer   Renderer
	controller *Controller
	link       actuator.Link
	dispatcher *notify.Dispatcher
	cfg        LoopConfig

	shutdownOnce sync.Once
}

// NewLoop wires the loop. A nil renderer disables the overlay.
func NewLoop(
	source Source,
	detector Detector,
	renderer Renderer,
	controller *Controller,
	link actuator.Link,
	dispatcher *notify.Dispatcher,
	cfg LoopConfig,
) *Loop {
	if renderer == nil {
		renderer = NopRenderer{}
	}

	return &Loop{
		source:     source,
		detector:   detector,
		renderer:   renderer,
		controller: controller,
		link:       link,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// Run processes frames until ctx is cancelled, the source ends, the operator
// quits or the detector fails. Shutdown runs once on every exit path,
// including panics, which are returned as ErrLoopPanic.
func (l *Loop) Run(ctx context.Context) (err error) {
	ctx = logger.WithName(ctx, "loop")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrLoopPanic, r)
			logger.ErrorKV(ctx, "Control loop panicked", "panic", r)
		}

		l.Shutdown(ctx)
	}()

	logger.Info(ctx, "Control loop started")

	for {
		if ctx.Err() != nil {
			logger.Info(ctx, "Control loop interrupted")

			return nil
		}

		quit, iterErr := l.iterate(ctx)
		if iterErr != nil {
			return iterErr
		}

		if quit {
			logger.Info(ctx, "Control loop stopped by operator")

			return nil
		}
	}
}

// iterate handles one frame.
func (l *Loop) iterate(ctx context.Context) (bool, error) {
	frame, err := l.source.Read(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			logger.Info(ctx, "Frame source exhausted")

			return true, nil
		}

		if ctx.Err() != nil {
			return false, nil
		}

		logger.WarnKV(ctx, "Failed to read frame", "error", err)
		l.controller.FrameFailed()
		wait(ctx, l.cfg.RetryDelay)

		return false, nil
	}

	defer func() {
		if closeErr := frame.Close(); closeErr != nil {
			logger.DebugKV(ctx, "Failed to release frame", "error", closeErr)
		}
	}()

	detections, err := l.detector.Detect(ctx, frame)
	if err != nil {
		return false, fmt.Errorf("detect fire: %w", err)
	}

	signal := fire.Signal(detections, l.cfg.Threshold, l.cfg.Labels...)

	view := l.controller.Step(ctx, frame, signal)
	view.Detections = detections

	return l.renderer.Render(frame, view), nil
}

// Shutdown stops the actuator, releases every resource and optionally waits
// for in-flight notifications. Only the first call has any effect.
func (l *Loop) Shutdown(ctx context.Context) {
	l.shutdownOnce.Do(func() {
		ctx = context.WithoutCancel(ctx)

		logger.Info(ctx, "Shutting down")

		l.controller.Shutdown(ctx)

		if err := l.source.Close(); err != nil {
			logger.ErrorKV(ctx, "Failed to release frame source", "error", err)
		}

		if err := l.renderer.Close(); err != nil {
			logger.ErrorKV(ctx, "Failed to close preview", "error", err)
		}

		if err := l.link.Close(); err != nil {
			logger.ErrorKV(ctx, "Failed to close actuator link", "error", err)
		}

		l.awaitNotifications(ctx)

		logger.Info(ctx, "Shutdown complete")
	})
}

func (l *Loop) awaitNotifications(ctx context.Context) {
	inFlight := l.dispatcher.InFlight()
	if inFlight == 0 {
		return
	}

	if l.cfg.ShutdownGrace <= 0 {
		logger.WarnKV(ctx, "Detaching in-flight notifications", "in_flight", inFlight)

		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.cfg.ShutdownGrace)
	defer cancel()

	if err := l.dispatcher.Wait(waitCtx); err != nil {
		logger.WarnKV(ctx, "Notifications did not finish in time", "error", err)
	}
}

// wait pauses for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) {
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
