// Package messaging owns the NATS connection used for alerts and episode events.
package messaging
