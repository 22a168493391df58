package yolo

import (
	"math"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
)

// Letterbox describes how a frame was scaled and padded into the square model input.
type Letterbox struct {
	Scale  float64
	PadX   int
	PadY   int
	Width  int
	Height int
	// SrcWidth and SrcHeight are the original frame dimensions.
	SrcWidth  int
	SrcHeight int
}

// NewLetterbox fits a srcW x srcH frame into a size x size square, keeping the aspect ratio.
func NewLetterbox(srcW, srcH, size int) Letterbox {
	scale := math.Min(float64(size)/float64(srcW), float64(size)/float64(srcH))

	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))

	return Letterbox{
		Scale:     scale,
		PadX:      (size - w) / 2,
		PadY:      (size - h) / 2,
		Width:     w,
		Height:    h,
		SrcWidth:  srcW,
		SrcHeight: srcH,
	}
}

// Unmap converts a centre-format box in model input pixels to a clamped frame box.
func (l Letterbox) Unmap(cx, cy, w, h float64) fire.Box {
	x1 := (cx - w/2 - float64(l.PadX)) / l.Scale
	y1 := (cy - h/2 - float64(l.PadY)) / l.Scale
	x2 := (cx + w/2 - float64(l.PadX)) / l.Scale
	y2 := (cy + h/2 - float64(l.PadY)) / l.Scale

	return fire.Box{
		X1: clamp(x1, l.SrcWidth),
		Y1: clamp(y1, l.SrcHeight),
		X2: clamp(x2, l.SrcWidth),
		Y2: clamp(y2, l.SrcHeight),
	}
}

func clamp(v float64, limit int) int {
	switch {
	case v < 0:
		return 0
	case v > float64(limit):
		return limit
	default:
		return int(v)
	}
}
