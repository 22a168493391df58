// Package server implements the run command: it wires the camera, detector,
// actuator link, notifier and status servers around the control loop.
package server
