package yolo

import (
	"errors"
	"fmt"
	"sort"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
)

const (
	// DefaultMinConfidence drops candidates far below any useful threshold.
	DefaultMinConfidence = 0.25
	// DefaultIoUThreshold is the overlap above which the weaker box is suppressed.
	DefaultIoUThreshold = 0.45
)

// ErrShapeMismatch is returned when the tensor does not match the class list.
var ErrShapeMismatch = errors.New("model output shape mismatch")

// Decoder turns raw output into detections.
type Decoder struct {
	Classes       []string
	MinConfidence float64
	IoUThreshold  float64
}

// NewDecoder creates a decoder with the default confidence floor and IoU threshold.
func NewDecoder(classes []string) Decoder {
	return Decoder{
		Classes:       classes,
		MinConfidence: DefaultMinConfidence,
		IoUThreshold:  DefaultIoUThreshold,
	}
}

// Decode reads a row-major [rows x cols] tensor where rows is 4+len(Classes)
// and cols is the number of candidates.
func (d Decoder) Decode(data []float32, rows, cols int, lb Letterbox) ([]fire.Detection, error) {
	if rows != 4+len(d.Classes) {
		return nil, fmt.Errorf("%w: %d rows for %d classes", ErrShapeMismatch, rows, len(d.Classes))
	}

	if len(data) < rows*cols {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrShapeMismatch, len(data), rows, cols)
	}

	at := func(r, c int) float64 { return float64(data[r*cols+c]) }

	var candidates []fire.Detection

	for c := range cols {
		best, bestScore := -1, 0.0

		for k := range d.Classes {
			if score := at(4+k, c); score > bestScore {
				best, bestScore = k, score
			}
		}

		if best < 0 || bestScore < d.MinConfidence {
			continue
		}

		box := lb.Unmap(at(0, c), at(1, c), at(2, c), at(3, c))
		if box.X2 <= box.X1 || box.Y2 <= box.Y1 {
			continue
		}

		candidates = append(candidates, fire.Detection{
			Box:        box,
			Label:      d.Classes[best],
			Confidence: bestScore,
		})
	}

	return NMS(candidates, d.IoUThreshold), nil
}

// NMS keeps the most confident box of every overlapping group with the same label.
func NMS(detections []fire.Detection, iouThreshold float64) []fire.Detection {
	sorted := append([]fire.Detection(nil), detections...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]fire.Detection, 0, len(sorted))

	for _, candidate := range sorted {
		suppressed := false

		for _, k := range kept {
			if k.Label == candidate.Label && IoU(k.Box, candidate.Box) > iouThreshold {
				suppressed = true

				break
			}
		}

		if !suppressed {
			kept = append(kept, candidate)
		}
	}

	return kept
}

// IoU returns the intersection over union of two boxes.
func IoU(a, b fire.Box) float64 {
	ix1, iy1 := max(a.X1, b.X1), max(a.Y1, b.Y1)
	ix2, iy2 := min(a.X2, b.X2), min(a.Y2, b.Y2)

	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}

	inter := float64((ix2 - ix1) * (iy2 - iy1))
	union := float64(area(a)+area(b)) - inter

	if union <= 0 {
		return 0
	}

	return inter / union
}

func area(b fire.Box) int {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}
