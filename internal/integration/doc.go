// Package integration holds end-to-end tests that run the control loop behind
// the real gRPC and HTTP status servers.
package integration
