// Package yolo decodes YOLOv8 ONNX output tensors into detections.
//
// The exported model emits one [4+classes, candidates] matrix per image:
// box centre, width and height in letterboxed input pixels followed by one
// score per class. Decoding maps boxes back to the source frame and
// suppresses overlapping candidates per class.
package yolo
