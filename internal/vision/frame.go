package vision

import (
	"fmt"

	"gocv.io/x/gocv"
)

// jpegQuality matches what alert recipients expect from a phone camera.
const jpegQuality = 90

// Frame owns one captured image.
type Frame struct {
	mat gocv.Mat
}

// Mat exposes the image for drawing and inference.
func (f *Frame) Mat() gocv.Mat {
	return f.mat
}

// JPEG encodes the frame.
func (f *Frame) JPEG() ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, f.mat, []int{gocv.IMWriteJpegQuality, jpegQuality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// Close releases the image memory.
func (f *Frame) Close() error {
	return f.mat.Close()
}
