// Package rest serves controller status over HTTP: a health probe, a JSON
// status document, Prometheus metrics and a websocket feed of status updates.
package rest
