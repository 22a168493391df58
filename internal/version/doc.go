// Package version carries build metadata injected through -ldflags -X.
package version
