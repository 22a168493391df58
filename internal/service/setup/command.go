package setup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/fire-sentinel/internal/config"
	"github.com/oshokin/fire-sentinel/internal/logger"
)

// Options contains inputs for the init-config entry point.
type Options struct {
	// ConfigPath is where the configuration is written (defaults to fire-sentinel.yaml).
	ConfigPath string
	// Force overwrites an existing file.
	Force bool
	// ActuatorEndpoint pre-fills the serial port.
	ActuatorEndpoint string
	// RecipientAddress pre-fills the alert recipient.
	RecipientAddress string
}

// ErrConfigExists is returned when the target file exists and Force is not set.
var ErrConfigExists = errors.New("configuration file already exists")

// Run writes a default configuration.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "init-config")

	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultConfigFilename
	}

	if !opts.Force {
		_, err := os.Stat(filepath.Clean(path))
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}

	cfg := config.Default()
	cfg.ActuatorEndpoint = opts.ActuatorEndpoint
	cfg.RecipientAddress = opts.RecipientAddress

	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	logger.InfoKV(ctx, "Configuration written", "path", path)
	logger.Info(ctx, NextSteps(cfg))

	return nil
}

// NextSteps lists the settings a fresh configuration still lacks.
func NextSteps(cfg *config.Config) string {
	var steps []string

	if cfg.ActuatorEndpoint == "" {
		steps = append(steps, "set actuator_endpoint to the serial port of the suppression unit (e.g. /dev/ttyUSB0)")
	}

	if cfg.RecipientAddress == "" {
		steps = append(steps, "set recipient_address to the chat or channel that receives alerts")
	}

	if cfg.NATSURL == "" {
		steps = append(steps, "set nats_url to deliver alerts over NATS, otherwise they are only logged")
	}

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		steps = append(steps, "place the detector model at "+cfg.ModelPath)
	}

	if len(steps) == 0 {
		return "Configuration is complete, start the controller with: fire-sentinel run"
	}

	var builder strings.Builder

	builder.WriteString("Before running fire-sentinel:")

	for _, step := range steps {
		builder.WriteString("\n  - ")
		builder.WriteString(step)
	}

	return builder.String()
}
