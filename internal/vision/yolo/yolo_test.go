package yolo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
)

// TestNewLetterbox fits a 4:3 frame into a square input.
func TestNewLetterbox(t *testing.T) {
	t.Parallel()

	lb := NewLetterbox(640, 480, 320)

	require.InDelta(t, 0.5, lb.Scale, 1e-9)
	require.Equal(t, 320, lb.Width)
	require.Equal(t, 240, lb.Height)
	require.Equal(t, 0, lb.PadX)
	require.Equal(t, 40, lb.PadY)

	require.Equal(t, fire.Box{X1: 220, Y1: 160, X2: 420, Y2: 320}, lb.Unmap(160, 160, 100, 80))
	require.Equal(t, fire.Box{X1: 0, Y1: 0, X2: 640, Y2: 480}, lb.Unmap(160, 160, 400, 400))
}

// TestDecode picks the best class, drops weak candidates and suppresses overlaps.
func TestDecode(t *testing.T) {
	t.Parallel()

	// Columns are candidates; rows are cx, cy, w, h, fire, smoke.
	data := []float32{
		160, 162, 40,
		160, 160, 40,
		100, 100, 10,
		80, 80, 10,
		0.9, 0.8, 0.05,
		0.1, 0.1, 0.1,
	}

	d := NewDecoder([]string{"fire", "smoke"})

	got, err := d.Decode(data, 6, 3, NewLetterbox(640, 480, 320))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "fire", got[0].Label)
	require.InDelta(t, 0.9, got[0].Confidence, 1e-6)
	require.Equal(t, fire.Box{X1: 220, Y1: 160, X2: 420, Y2: 320}, got[0].Box)
}

// TestDecode_ShapeMismatch rejects tensors that do not fit the class list.
func TestDecode_ShapeMismatch(t *testing.T) {
	t.Parallel()

	d := NewDecoder([]string{"fire"})

	_, err := d.Decode(make([]float32, 12), 6, 2, NewLetterbox(10, 10, 32))
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = d.Decode(make([]float32, 4), 5, 2, NewLetterbox(10, 10, 32))
	require.ErrorIs(t, err, ErrShapeMismatch)
}

// TestNMS keeps distinct labels and distant boxes.
func TestNMS(t *testing.T) {
	t.Parallel()

	box := fire.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	far := fire.Box{X1: 50, Y1: 50, X2: 60, Y2: 60}

	kept := NMS([]fire.Detection{
		{Box: box, Label: "fire", Confidence: 0.6},
		{Box: box, Label: "fire", Confidence: 0.9},
		{Box: box, Label: "smoke", Confidence: 0.7},
		{Box: far, Label: "fire", Confidence: 0.5},
	}, DefaultIoUThreshold)

	require.Len(t, kept, 3)
	require.InDelta(t, 0.9, kept[0].Confidence, 0)
	require.Equal(t, "smoke", kept[1].Label)
	require.Equal(t, far, kept[2].Box)
}

// TestIoU covers identical, disjoint and partial overlap.
func TestIoU(t *testing.T) {
	t.Parallel()

	a := fire.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}

	require.InDelta(t, 1.0, IoU(a, a), 1e-9)
	require.InDelta(t, 0.0, IoU(a, fire.Box{X1: 20, Y1: 20, X2: 30, Y2: 30}), 1e-9)
	require.InDelta(t, 50.0/150.0, IoU(a, fire.Box{X1: 5, Y1: 0, X2: 15, Y2: 10}), 1e-9)
}
