package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"

	"gocv.io/x/gocv"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/logger"
	"github.com/oshokin/fire-sentinel/internal/service/sentinel"
	"github.com/oshokin/fire-sentinel/internal/vision/yolo"
)

var (
	// ErrModelUnavailable is returned when the ONNX file is missing or unreadable.
	ErrModelUnavailable = errors.New("detector model unavailable")
	// ErrUnsupportedFrame is returned for frames not produced by this package.
	ErrUnsupportedFrame = errors.New("unsupported frame type")
)

// padColor is the grey used by YOLO letterboxing.
//
//nolint:gochecknoglobals // Immutable drawing constant.
var padColor = color.RGBA{R: 114, G: 114, B: 114, A: 0}

// Detector runs a YOLOv8 ONNX model on the CPU.
type Detector struct {
	net       gocv.Net
	inputSize int
	decoder   yolo.Decoder
}

// NewDetector loads the model from path.
func NewDetector(ctx context.Context, path string, inputSize int, classes []string) (*Detector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s could not be parsed", ErrModelUnavailable, path)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	logger.InfoKV(ctx, "Detector model loaded", "path", path, "input_size", inputSize, "classes", classes)

	return &Detector{
		net:       net,
		inputSize: inputSize,
		decoder:   yolo.NewDecoder(classes),
	}, nil
}

// Detect returns every candidate above the decoder floor.
func (d *Detector) Detect(_ context.Context, frame sentinel.Frame) ([]fire.Detection, error) {
	f, ok := frame.(*Frame)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedFrame, frame)
	}

	src := f.Mat()
	lb := yolo.NewLetterbox(src.Cols(), src.Rows(), d.inputSize)

	resized := gocv.NewMat()
	defer resized.Close()

	gocv.Resize(src, &resized, image.Pt(lb.Width, lb.Height), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMat()
	defer padded.Close()

	gocv.CopyMakeBorder(
		resized, &padded,
		lb.PadY, d.inputSize-lb.Height-lb.PadY,
		lb.PadX, d.inputSize-lb.Width-lb.PadX,
		gocv.BorderConstant, padColor,
	)

	blob := gocv.BlobFromImage(padded, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("%w: output dims %v", yolo.ErrShapeMismatch, dims)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read model output: %w", err)
	}

	return d.decoder.Decode(data, dims[1], dims[2], lb)
}

// Close releases the network.
func (d *Detector) Close() error {
	return d.net.Close()
}
