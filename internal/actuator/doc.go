// Package actuator implements the command channel to the fire actuator.
//
// Commands are newline-terminated ASCII tokens written to a serial port. The
// channel is output-only: before each write any unread echo from the receiver
// is discarded, and after each write the sender pauses for a short settle
// delay. There are no acknowledgements and no retries.
package actuator
