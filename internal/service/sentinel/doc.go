// Package sentinel runs the fire alarm control loop.
//
// A single goroutine reads frames, runs the detector, feeds the frame signal
// to the fire.Machine and applies the resulting effects: actuator commands,
// the one notification per confirmed episode and the preview overlay. The
// Board publishes a read-only snapshot of the controller for telemetry.
// Whatever ends the loop, Loop.Run performs the ordered shutdown exactly once.
package sentinel
