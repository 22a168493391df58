package fire

import (
	"errors"
	"fmt"
	"strings"
)

// Phase is the state of the alarm machine.
type Phase int

const (
	// PhaseIdle means no fire episode is live and the actuator scans.
	PhaseIdle Phase = iota
	// PhaseConfirming means a detection started an episode that is not confirmed yet.
	PhaseConfirming
	// PhaseAlarmed means the alarm fired and holds until the cooldown elapses.
	PhaseAlarmed
)

// String returns the upper-case phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseConfirming:
		return "CONFIRMING"
	case PhaseAlarmed:
		return "ALARMED"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Command is one actuator instruction.
type Command string

// Actuator command vocabulary.
const (
	CommandScan   Command = "SCAN"
	CommandStop   Command = "STOP"
	CommandFire   Command = "FIRE"
	CommandResume Command = "RESUME"
	CommandReset  Command = "RESET"
)

// ErrUnknownCommand is returned when a string is not part of the vocabulary.
var ErrUnknownCommand = errors.New("unknown actuator command")

// Commands lists the full vocabulary in a stable order.
func Commands() []Command {
	return []Command{CommandScan, CommandStop, CommandFire, CommandResume, CommandReset}
}

// ParseCommand converts a case-insensitive name into a Command.
func ParseCommand(s string) (Command, error) {
	c := Command(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q, want one of %v", ErrUnknownCommand, s, Commands())
	}

	return c, nil
}

// Valid reports whether c belongs to the vocabulary.
func (c Command) Valid() bool {
	switch c {
	case CommandScan, CommandStop, CommandFire, CommandResume, CommandReset:
		return true
	default:
		return false
	}
}

// Box is an axis-aligned bounding box in frame pixels.
type Box struct {
	X1, Y1, X2, Y2 int
}

// Detection is one object instance found in a single frame.
type Detection struct {
	Box        Box
	Label      string
	Confidence float64
}

// Signal reports whether any detection meets the threshold. When labels are
// given only detections carrying one of them (case-insensitive) count.
func Signal(detections []Detection, threshold float64, labels ...string) bool {
	for _, d := range detections {
		if d.Confidence < threshold {
			continue
		}

		if len(labels) == 0 {
			return true
		}

		for _, l := range labels {
			if strings.EqualFold(l, d.Label) {
				return true
			}
		}
	}

	return false
}
