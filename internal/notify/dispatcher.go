package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/fire-sentinel/internal/logger"
)

// ErrNotifierPanic wraps a panic raised inside a notifier.
var ErrNotifierPanic = errors.New("notifier panicked")

// Observer is told about every finished notification.
type Observer func(err error, elapsed time.Duration)

// Dispatcher runs notifications on background goroutines and tracks them so
// shutdown can optionally wait for them.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	observer Observer

	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTimeout bounds each notification; zero or negative leaves it unbounded.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithObserver registers a completion callback, called on the worker goroutine.
func WithObserver(o Observer) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.observer = o
	}
}

// NewDispatcher creates a dispatcher for n.
func NewDispatcher(n Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{notifier: n}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch starts the notification and returns immediately. The worker does
// not inherit cancellation from ctx: an in-flight alert is never cancelled by
// the control loop, only by the optional timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, alert Alert) *Ticket {
	t := &Ticket{done: make(chan struct{})}

	d.wg.Add(1)
	d.inFlight.Add(1)

	go func() {
		defer d.wg.Done()
		defer d.inFlight.Add(-1)

		workerCtx := logger.WithKV(context.WithoutCancel(ctx), "episode_id", alert.EpisodeID)

		start := time.Now()
		err := d.send(workerCtx, alert)
		elapsed := time.Since(start)

		if err != nil {
			logger.ErrorKV(workerCtx, "Fire notification failed", "error", err, "elapsed", elapsed)
		} else {
			logger.InfoKV(workerCtx, "Fire notification sent", "recipient", alert.Recipient, "elapsed", elapsed)
		}

		if d.observer != nil {
			d.observer(err, elapsed)
		}

		t.finish(err)
	}()

	return t
}

// send invokes the notifier with the timeout and converts panics into errors.
func (d *Dispatcher) send(ctx context.Context, alert Alert) (err error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrNotifierPanic, r)
		}
	}()

	return d.notifier.Notify(ctx, alert)
}

// InFlight returns the number of unfinished notifications.
func (d *Dispatcher) InFlight() int {
	return int(d.inFlight.Load())
}

// Wait blocks until every dispatched notification finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d notification(s) still in flight: %w", d.InFlight(), ctx.Err())
	}
}

// Ticket tracks one dispatched notification.
type Ticket struct {
	done      chan struct{}
	delivered atomic.Bool
	err       error
}

// Done is closed when the worker finished, successfully or not.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Delivered reports whether the worker finished. A nil ticket reports false.
func (t *Ticket) Delivered() bool {
	return t != nil && t.delivered.Load()
}

// Err returns the notification error. It is only meaningful after Done is closed.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// finish records the result with a single write of the completion flag.
func (t *Ticket) finish(err error) {
	t.err = err
	t.delivered.Store(true)
	close(t.done)
}
