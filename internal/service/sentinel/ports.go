package sentinel

import (
	"context"
	"time"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
)

// Frame is one captured image. The loop closes every frame it reads.
type Frame interface {
	// JPEG encodes the frame for notifications.
	JPEG() ([]byte, error)
	// Close releases the frame buffer.
	Close() error
}

// Source produces frames. Read returning io.EOF ends the loop normally.
type Source interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Detector finds fire in a frame. Confidence filtering is applied by the loop.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]fire.Detection, error)
}

// View is what the renderer draws over a frame.
type View struct {
	Phase      fire.Phase
	Remaining  time.Duration
	EpisodeID  string
	Detections []fire.Detection
}

// Renderer draws the overlay. Render returns true when the operator asked to quit.
type Renderer interface {
	Render(frame Frame, view View) bool
	Close() error
}

// EventSink receives episode lifecycle events. Implementations must not block.
type EventSink interface {
	PublishEvent(ctx context.Context, event fire.Event) error
}

// NopRenderer is used when the preview window is disabled.
type NopRenderer struct{}

// Render never asks to quit.
func (NopRenderer) Render(Frame, View) bool { return false }

// Close does nothing.
func (NopRenderer) Close() error { return nil }
