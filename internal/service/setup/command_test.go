package setup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fire-sentinel/internal/config"
)

// TestRun_WritesDefaults creates a loadable file and refuses to overwrite it.
func TestRun_WritesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fire-sentinel.yaml")

	err := Run(context.Background(), &Options{ConfigPath: path, ActuatorEndpoint: "/dev/ttyUSB0"})
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "actuator_endpoint: /dev/ttyUSB0")
	require.Contains(t, string(contents), "confirmation_window: 3s")

	err = Run(context.Background(), &Options{ConfigPath: path})
	require.ErrorIs(t, err, ErrConfigExists)

	require.NoError(t, Run(context.Background(), &Options{ConfigPath: path, Force: true}))

	contents, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `actuator_endpoint: ""`)
}

// TestNextSteps names every missing setting.
func TestNextSteps(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")

	steps := NextSteps(cfg)
	require.Contains(t, steps, "actuator_endpoint")
	require.Contains(t, steps, "recipient_address")
	require.Contains(t, steps, "nats_url")
	require.Contains(t, steps, "missing.onnx")

	model := filepath.Join(t.TempDir(), "best.onnx")
	require.NoError(t, os.WriteFile(model, []byte("onnx"), 0o600))

	cfg.ModelPath = model
	cfg.ActuatorEndpoint = "/dev/ttyUSB0"
	cfg.RecipientAddress = "@ops"
	cfg.NATSURL = "nats://localhost:4222"

	require.Contains(t, NextSteps(cfg), "fire-sentinel run")
}
