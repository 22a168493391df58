package sentinel

import (
	"sync"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
)

// Board holds the latest controller status. Only the control loop writes it;
// any number of telemetry readers may read or subscribe.
type Board struct {
	mu     sync.RWMutex
	status *fire.Status
	subs   map[chan *fire.Status]struct{}
}

// NewBoard creates a board reporting an idle controller with a healthy link.
func NewBoard() *Board {
	return &Board{
		status: &fire.Status{
			Phase:       fire.PhaseIdle,
			LinkHealthy: true,
		},
		subs: make(map[chan *fire.Status]struct{}),
	}
}

// Snapshot returns a copy of the current status.
func (b *Board) Snapshot() *fire.Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.status.Clone()
}

// Publish replaces the status and wakes subscribers. Slow subscribers only
// ever see the latest status.
func (b *Board) Publish(status *fire.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status = status.Clone()

	for ch := range b.subs {
		select {
		case <-ch:
		default:
		}

		select {
		case ch <- b.status.Clone():
		default:
		}
	}
}

// Subscribe returns a channel receiving status updates, primed with the
// current status, and a function that cancels the subscription.
func (b *Board) Subscribe() (<-chan *fire.Status, func()) {
	ch := make(chan *fire.Status, 1)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	ch <- b.status.Clone()
	b.mu.Unlock()

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}
