// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client for the status and health services
// with per-call timeouts, and detects the local user and host so status
// queries can be attributed in server logs.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
