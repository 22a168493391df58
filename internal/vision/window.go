package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/service/sentinel"
)

const (
	// WindowTitle is the preview window name.
	WindowTitle = "Fire Detection"

	keyEscape = 27
	fontScale = 0.7
	thickness = 2
)

//nolint:gochecknoglobals // Immutable drawing constants.
var (
	red    = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	yellow = color.RGBA{R: 255, G: 255, B: 0, A: 0}
)

// Window shows frames with the detection overlay. ESC asks the loop to quit.
type Window struct {
	window    *gocv.Window
	threshold float64
	labels    []string
}

// NewWindow opens the preview window. Only boxes that count as fire are drawn.
func NewWindow(threshold float64, labels []string) *Window {
	return &Window{
		window:    gocv.NewWindow(WindowTitle),
		threshold: threshold,
		labels:    labels,
	}
}

// Render draws the overlay and polls the keyboard.
func (w *Window) Render(frame sentinel.Frame, view sentinel.View) bool {
	f, ok := frame.(*Frame)
	if !ok {
		return false
	}

	mat := f.Mat()

	for _, d := range view.Detections {
		if !fire.Signal([]fire.Detection{d}, w.threshold, w.labels...) {
			continue
		}

		gocv.Rectangle(&mat, image.Rect(d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2), red, thickness)
		gocv.PutText(&mat, "FIRE", image.Pt(d.Box.X1, d.Box.Y1-10), gocv.FontHersheySimplex, fontScale, red, thickness)
	}

	if text, c, ok := Banner(view); ok {
		gocv.PutText(&mat, text, image.Pt(10, 30), gocv.FontHersheySimplex, fontScale, c, thickness)
	}

	w.window.IMShow(mat)

	return w.window.WaitKey(1) == keyEscape
}

// Banner returns the status line for view, if any.
func Banner(view sentinel.View) (string, color.RGBA, bool) {
	switch view.Phase {
	case fire.PhaseConfirming:
		return fmt.Sprintf("Confirming: %.1fs", view.Remaining.Seconds()), yellow, true
	case fire.PhaseAlarmed:
		return "ALARM: FIRE CONFIRMED", red, true
	case fire.PhaseIdle:
		return "", color.RGBA{}, false
	default:
		return "", color.RGBA{}, false
	}
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.window.Close()
}
