// Package vision adapts OpenCV (through gocv) to the control loop: camera
// capture, the ONNX fire detector and the preview window with its overlay.
//
// Everything cgo-bound lives here so the rest of the module builds and tests
// without OpenCV.
package vision
