package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oshokin/fire-sentinel/internal/actuator"
	grpcstatus "github.com/oshokin/fire-sentinel/internal/api/grpc/status"
	"github.com/oshokin/fire-sentinel/internal/api/rest"
	"github.com/oshokin/fire-sentinel/internal/config"
	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/logger"
	"github.com/oshokin/fire-sentinel/internal/messaging"
	"github.com/oshokin/fire-sentinel/internal/metrics"
	"github.com/oshokin/fire-sentinel/internal/notify"
	"github.com/oshokin/fire-sentinel/internal/service/common"
	"github.com/oshokin/fire-sentinel/internal/service/sentinel"
	"github.com/oshokin/fire-sentinel/internal/version"
	"github.com/oshokin/fire-sentinel/internal/vision"
)

// Options controls the fire-sentinel controller process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// LogLevel overrides log_level from the configuration.
	LogLevel string
	// Headless disables the preview window regardless of configuration.
	Headless bool
	// AllowMultiple skips the check for other running instances.
	AllowMultiple bool
}

var (
	// ErrAlreadyRunning indicates another controller holds the camera and actuator.
	ErrAlreadyRunning = errors.New("another fire-sentinel instance is running")
	// ErrInvalidLogLevel indicates an unknown log level name.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Run starts the controller and blocks until ctx is cancelled, the frame
// source ends, the operator quits or a fatal error occurs.
//
//nolint:funlen // Startup wiring reads best as one sequence.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "fire-sentinel")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = applyLogLevel(cfg.LogLevel, opts.LogLevel); err != nil {
		return err
	}

	if !opts.AllowMultiple {
		if err = ensureSingleInstance(ctx); err != nil {
			return err
		}
	}

	m := metrics.New()
	board := sentinel.NewBoard()

	bus := connectBus(ctx, cfg)
	if bus != nil {
		// Registered first so it runs after the loop has waited for notifications.
		defer bus.Shutdown(context.WithoutCancel(ctx))
	}

	dispatcher := notify.NewDispatcher(
		buildNotifier(cfg, bus),
		notify.WithTimeout(cfg.NotifyTimeout),
		notify.WithObserver(m.NotificationFinished),
	)

	link, err := actuator.Dial(ctx, actuator.Settings{
		Endpoint:    cfg.ActuatorEndpoint,
		BaudRate:    cfg.BaudRate,
		ReadTimeout: cfg.ActuatorReadTimeout,
		SettleDelay: cfg.SettleDelay,
		Aliases:     cfg.Aliases(),
	})
	if err != nil {
		logger.ErrorKV(ctx, "Actuator unavailable, continuing without it",
			"endpoint", cfg.ActuatorEndpoint, "error", err)
	}

	detector, err := vision.NewDetector(ctx, cfg.ModelPath, cfg.ModelInputSize, cfg.ModelClasses)
	if err != nil {
		closeLink(ctx, link)

		return fmt.Errorf("load detector: %w", err)
	}

	defer func() {
		if closeErr := detector.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to release detector", "error", closeErr)
		}
	}()

	camera, err := vision.OpenCamera(ctx, vision.CameraSettings{
		Device:     cfg.CameraDevice,
		Width:      cfg.FrameSize.Width,
		Height:     cfg.FrameSize.Height,
		BufferSize: cfg.CameraBufferSize,
	})
	if err != nil {
		closeLink(ctx, link)

		return fmt.Errorf("open camera: %w", err)
	}

	var renderer sentinel.Renderer = sentinel.NopRenderer{}
	if cfg.Display && !opts.Headless {
		renderer = vision.NewWindow(cfg.ConfidenceThreshold, cfg.Labels)
	}

	controllerOptions := []sentinel.ControllerOption{
		sentinel.WithBoard(board),
		sentinel.WithMetrics(m),
		sentinel.WithAlert(cfg.Caption, cfg.RecipientAddress),
	}

	if bus != nil {
		controllerOptions = append(controllerOptions, sentinel.WithEvents(bus))
	}

	controller := sentinel.NewController(fire.NewMachine(cfg.Windows()), link, dispatcher, controllerOptions...)

	loop := sentinel.NewLoop(camera, detector, renderer, controller, link, dispatcher, sentinel.LoopConfig{
		Threshold:     cfg.ConfidenceThreshold,
		Labels:        cfg.Labels,
		RetryDelay:    cfg.FrameRetryDelay,
		ShutdownGrace: cfg.ShutdownGrace,
	})

	telemetryCtx, stopTelemetry := context.WithCancel(ctx)
	defer stopTelemetry()

	var telemetry sync.WaitGroup

	serveTelemetry(telemetryCtx, &telemetry, cfg, board, m, bus)

	logger.InfoKV(ctx, "Build", version.Fields()...)

	logger.InfoKV(ctx, "Controller started",
		"camera", cfg.CameraDevice,
		"actuator", cfg.ActuatorEndpoint,
		"confirmation_window", cfg.ConfirmationWindow.Duration(),
		"cooldown_window", cfg.CooldownWindow.Duration(),
		"threshold", cfg.ConfidenceThreshold)

	runErr := loop.Run(ctx)

	stopTelemetry()
	telemetry.Wait()

	if runErr != nil {
		return fmt.Errorf("control loop: %w", runErr)
	}

	logger.Info(ctx, "Controller stopped")

	return nil
}

// serveTelemetry starts the configured status servers. Their failures are
// logged and never stop the controller.
func serveTelemetry(
	ctx context.Context,
	wg *sync.WaitGroup,
	cfg *config.Config,
	board *sentinel.Board,
	m *metrics.Metrics,
	bus *messaging.Service,
) {
	if cfg.HTTPAddress != "" {
		var opts []rest.Option
		if bus != nil {
			opts = append(opts, rest.WithNotifierCheck(bus.Connected))
		}

		srv := rest.NewServer(ctx, board, m.Handler(), opts...)

		wg.Go(func() {
			if err := srv.Serve(ctx, cfg.HTTPAddress); err != nil {
				logger.ErrorKV(ctx, "HTTP status server failed", "error", err)
			}
		})
	}

	if cfg.GRPCAddress != "" {
		wg.Go(func() {
			if err := grpcstatus.Serve(ctx, cfg.GRPCAddress, board); err != nil {
				logger.ErrorKV(ctx, "gRPC status server failed", "error", err)
			}
		})
	}
}

// connectBus connects to NATS when configured. Failures fall back to the log
// notifier so a transport outage never stops detection.
func connectBus(ctx context.Context, cfg *config.Config) *messaging.Service {
	if cfg.NATSURL == "" {
		return nil
	}

	bus, err := messaging.Connect(ctx, cfg.NATSURL, cfg.EventsSubject)
	if err != nil {
		logger.ErrorKV(ctx, "NATS unavailable, alerts will only be logged", "url", cfg.NATSURL, "error", err)

		return nil
	}

	return bus
}

// buildNotifier picks the delivery channel: NATS when connected, the log
// otherwise, optionally storing snapshots on disk first.
func buildNotifier(cfg *config.Config, bus *messaging.Service) notify.Notifier {
	var n notify.Notifier = notify.LogNotifier{}

	if bus != nil {
		n = notify.NewNATSNotifier(bus.Conn(), cfg.AlertSubject)
	}

	if cfg.SnapshotDir != "" {
		n = notify.WithSnapshots(cfg.SnapshotDir, n)
	}

	return n
}

// applyLogLevel sets the global level; override wins over the configured value.
func applyLogLevel(configured, override string) error {
	name := configured
	if override != "" {
		name = override
	}

	level, ok := logger.ParseLogLevel(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}

	logger.SetLevel(level)

	return nil
}

func ensureSingleInstance(ctx context.Context) error {
	executable := common.CurrentExecutable()

	pids, err := common.OtherInstances(executable)
	if err != nil {
		logger.WarnKV(ctx, "Unable to check for other instances", "error", err)

		return nil
	}

	if len(pids) > 0 {
		return fmt.Errorf("%w: %s pid %v", ErrAlreadyRunning, executable, pids)
	}

	return nil
}

func closeLink(ctx context.Context, link actuator.Link) {
	if err := link.Close(); err != nil {
		logger.WarnKV(ctx, "Failed to close actuator link", "error", err)
	}
}
