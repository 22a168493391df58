package fire

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultConfirmationWindow is the continuous positive signal required before the alarm fires.
	DefaultConfirmationWindow = 3 * time.Second
	// DefaultCooldownWindow is the continuous negative signal required before the alarm clears.
	DefaultCooldownWindow = 10 * time.Second
)

// Windows holds the two timing parameters of the machine.
type Windows struct {
	Confirmation time.Duration
	Cooldown     time.Duration
}

// DefaultWindows returns the stock confirmation and cooldown windows.
func DefaultWindows() Windows {
	return Windows{
		Confirmation: DefaultConfirmationWindow,
		Cooldown:     DefaultCooldownWindow,
	}
}

// Episode is one fire incident from the first qualifying detection until the
// cooldown expires. Times carry the monotonic reading of time.Now.
type Episode struct {
	// ID identifies the episode in logs, events and alerts.
	ID uuid.UUID
	// StartedAt is when the first positive signal was seen.
	StartedAt time.Time
	// SignalLostAt is when the signal went false while alarmed; zero while present.
	SignalLostAt time.Time
	// Confirmed is set once the confirmation window elapsed.
	Confirmed bool
	// Notified is set when the notifier was dispatched for this episode.
	Notified bool
}

// Effects is what one step asks the caller to do.
type Effects struct {
	// Commands must be sent to the actuator in order.
	Commands []Command
	// Dispatch asks for exactly one notifier invocation for the live episode.
	Dispatch bool
	// Transition names what happened to the episode in this step, if anything.
	Transition Transition
	// Remaining is the confirmation countdown while confirming.
	Remaining time.Duration
}

// Transition classifies episode lifecycle changes.
type Transition string

// Episode lifecycle transitions reported by Machine.Step.
const (
	TransitionNone      Transition = ""
	TransitionStarted   Transition = "episode_started"
	TransitionDiscarded Transition = "episode_discarded"
	TransitionAlarmed   Transition = "alarm_raised"
	TransitionCleared   Transition = "alarm_cleared"
)

// Machine is the confirmation, alarm and cooldown state machine.
// It is driven by a single goroutine and is not safe for concurrent use.
type Machine struct {
	windows Windows
	newID   func() uuid.UUID

	phase   Phase
	episode *Episode
}

// MachineOption customises a Machine.
type MachineOption func(*Machine)

// WithIDGenerator replaces the episode ID source.
func WithIDGenerator(fn func() uuid.UUID) MachineOption {
	return func(m *Machine) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewMachine creates a machine in PhaseIdle.
func NewMachine(windows Windows, opts ...MachineOption) *Machine {
	m := &Machine{
		windows: windows,
		newID:   uuid.New,
		phase:   PhaseIdle,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

// Episode returns a copy of the live episode, or nil when idle.
func (m *Machine) Episode() *Episode {
	if m.episode == nil {
		return nil
	}

	e := *m.episode

	return &e
}

// Windows returns the timing parameters.
func (m *Machine) Windows() Windows {
	return m.windows
}

// Step feeds one frame signal observed at now and returns the effects to apply.
func (m *Machine) Step(signal bool, now time.Time) Effects {
	switch m.phase {
	case PhaseIdle:
		return m.stepIdle(signal, now)
	case PhaseConfirming:
		return m.stepConfirming(signal, now)
	case PhaseAlarmed:
		return m.stepAlarmed(signal, now)
	default:
		m.phase, m.episode = PhaseIdle, nil

		return Effects{}
	}
}

func (m *Machine) stepIdle(signal bool, now time.Time) Effects {
	if !signal {
		return Effects{Commands: []Command{CommandScan}}
	}

	m.episode = &Episode{
		ID:        m.newID(),
		StartedAt: now,
	}
	m.phase = PhaseConfirming

	return Effects{
		Transition: TransitionStarted,
		Remaining:  m.windows.Confirmation,
	}
}

func (m *Machine) stepConfirming(signal bool, now time.Time) Effects {
	// A single dropout ends the episode; there is no grace period.
	if !signal {
		m.episode = nil
		m.phase = PhaseIdle

		return Effects{Transition: TransitionDiscarded}
	}

	elapsed := now.Sub(m.episode.StartedAt)
	if elapsed < m.windows.Confirmation {
		return Effects{Remaining: m.windows.Confirmation - elapsed}
	}

	m.episode.Confirmed = true
	m.phase = PhaseAlarmed

	effects := Effects{
		Commands:   []Command{CommandStop, CommandFire},
		Transition: TransitionAlarmed,
	}

	// Notified is only ever set here, after Confirmed, and is never cleared
	// while the episode lives.
	if !m.episode.Notified {
		m.episode.Notified = true
		effects.Dispatch = true
	}

	return effects
}

func (m *Machine) stepAlarmed(signal bool, now time.Time) Effects {
	if signal {
		m.episode.SignalLostAt = time.Time{}

		return Effects{}
	}

	if m.episode.SignalLostAt.IsZero() {
		m.episode.SignalLostAt = now
	}

	if now.Sub(m.episode.SignalLostAt) < m.windows.Cooldown {
		return Effects{}
	}

	m.episode = nil
	m.phase = PhaseIdle

	return Effects{
		Commands:   []Command{CommandResume},
		Transition: TransitionCleared,
	}
}
