package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Window is a timing window. YAML accepts a number of seconds (3, 2.5) or a
// duration string ("3s", "1500ms"); it is written back as a duration string.
type Window time.Duration

// Duration returns w as a time.Duration.
func (w Window) Duration() time.Duration {
	return time.Duration(w)
}

// String renders w like time.Duration.
func (w Window) String() string {
	return time.Duration(w).String()
}

// ParseWindow parses seconds or a Go duration string.
func ParseWindow(s string) (Window, error) {
	s = strings.TrimSpace(s)

	if seconds, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
		}

		return Window(math.Round(seconds * float64(time.Second))), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is neither seconds nor a duration", ErrInvalidWindow, s)
	}

	return Window(d), nil
}

// MarshalYAML implements yaml.Marshaler.
func (w Window) MarshalYAML() (any, error) {
	return w.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (w *Window) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected seconds or a duration", ErrInvalidWindow, node.Line)
	}

	parsed, err := ParseWindow(node.Value)
	if err != nil {
		return err
	}

	*w = parsed

	return nil
}
