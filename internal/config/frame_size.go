package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default capture resolution.
const (
	DefaultFrameWidth  = 640
	DefaultFrameHeight = 480
)

// ErrInvalidFrameSize is returned when a frame size is not WIDTHxHEIGHT with positive values.
var ErrInvalidFrameSize = errors.New("frame size must look like 640x480")

// FrameSize is a capture resolution written as WIDTHxHEIGHT in YAML.
type FrameSize struct {
	Width  int
	Height int
}

// DefaultFrameSize returns 640x480.
func DefaultFrameSize() FrameSize {
	return FrameSize{Width: DefaultFrameWidth, Height: DefaultFrameHeight}
}

// ParseFrameSize parses strings like "640x480".
func ParseFrameSize(s string) (FrameSize, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return FrameSize{}, fmt.Errorf("%w: %q", ErrInvalidFrameSize, s)
	}

	width, errW := strconv.Atoi(strings.TrimSpace(w))
	height, errH := strconv.Atoi(strings.TrimSpace(h))

	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return FrameSize{}, fmt.Errorf("%w: %q", ErrInvalidFrameSize, s)
	}

	return FrameSize{Width: width, Height: height}, nil
}

// IsZero reports whether the size is unset.
func (f FrameSize) IsZero() bool {
	return f.Width == 0 && f.Height == 0
}

// String renders WIDTHxHEIGHT.
func (f FrameSize) String() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// MarshalYAML implements yaml.Marshaler.
func (f FrameSize) MarshalYAML() (any, error) {
	return f.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FrameSize) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("decode frame size: %w", err)
	}

	parsed, err := ParseFrameSize(raw)
	if err != nil {
		return err
	}

	*f = parsed

	return nil
}
