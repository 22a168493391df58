// Package checker implements the status command: it queries a running
// fire-sentinel over gRPC and prints the status document, once or on an
// interval.
package checker
