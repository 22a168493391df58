package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gocv.io/x/gocv"

	"github.com/oshokin/fire-sentinel/internal/logger"
	"github.com/oshokin/fire-sentinel/internal/service/sentinel"
)

// ErrFrameUnavailable is returned when the device produced no image.
var ErrFrameUnavailable = errors.New("camera returned no frame")

// CameraSettings configures capture.
type CameraSettings struct {
	// Device is a camera index ("0") or a file path or stream URL.
	Device     string
	Width      int
	Height     int
	BufferSize int
}

// Camera reads frames from a capture device.
type Camera struct {
	capture *gocv.VideoCapture
	// finite is true for video files, whose failed reads mean end of stream.
	finite bool
}

// OpenCamera opens the device and requests the configured resolution.
func OpenCamera(ctx context.Context, s CameraSettings) (*Camera, error) {
	var device any = s.Device
	if index, err := strconv.Atoi(s.Device); err == nil {
		device = index
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", s.Device, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(s.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(s.Height))
	capture.Set(gocv.VideoCaptureBufferSize, float64(s.BufferSize))

	_, statErr := os.Stat(s.Device)

	logger.InfoKV(ctx, "Camera opened",
		"device", s.Device,
		"width", capture.Get(gocv.VideoCaptureFrameWidth),
		"height", capture.Get(gocv.VideoCaptureFrameHeight),
	)

	return &Camera{
		capture: capture,
		finite:  statErr == nil,
	}, nil
}

// Read grabs the next frame. Video files return io.EOF when exhausted.
func (c *Camera) Read(context.Context) (sentinel.Frame, error) {
	mat := gocv.NewMat()

	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		_ = mat.Close()

		if c.finite {
			return nil, io.EOF
		}

		return nil, ErrFrameUnavailable
	}

	return &Frame{mat: mat}, nil
}

// Close releases the device.
func (c *Camera) Close() error {
	return c.capture.Close()
}
