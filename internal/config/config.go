package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
)

// Config holds every recognised option of the fire-sentinel binary.
type Config struct {
	// ConfirmationWindow is the continuous detection time required before the alarm fires.
	ConfirmationWindow Window `yaml:"confirmation_window"`
	// CooldownWindow is the continuous quiet time required before the alarm clears.
	CooldownWindow Window `yaml:"cooldown_window"`
	// ConfidenceThreshold is the minimum detection confidence that counts as fire.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	// Labels restricts which detection labels count as fire; empty accepts any.
	Labels []string `yaml:"labels,omitempty"`

	// RecipientAddress is where alerts are delivered.
	RecipientAddress string `yaml:"recipient_address"`
	// Caption is the static alert text.
	Caption string `yaml:"caption"`

	// FrameSize is the requested capture resolution.
	FrameSize FrameSize `yaml:"frame_size"`
	// CameraDevice is a device index ("0") or a stream URL.
	CameraDevice string `yaml:"camera_device"`
	// CameraBufferSize bounds the capture queue to keep frames fresh.
	CameraBufferSize int `yaml:"camera_buffer_size"`
	// Display opens a preview window with the overlay; ESC exits.
	Display bool `yaml:"display"`
	// FrameRetryDelay is the pause after a failed frame read.
	FrameRetryDelay time.Duration `yaml:"frame_retry_delay"`

	// ModelPath is the ONNX detector model.
	ModelPath string `yaml:"model_path"`
	// ModelInputSize is the square input edge of the model.
	ModelInputSize int `yaml:"model_input_size"`
	// ModelClasses names the model output classes in order.
	ModelClasses []string `yaml:"model_classes"`

	// ActuatorEndpoint is the serial port of the actuator; empty disables it.
	ActuatorEndpoint string `yaml:"actuator_endpoint"`
	// BaudRate is the serial line speed.
	BaudRate int `yaml:"baud_rate"`
	// ActuatorReadTimeout bounds reads while draining the receiver backlog.
	ActuatorReadTimeout time.Duration `yaml:"actuator_read_timeout"`
	// SettleDelay is the pause after each command so the receiver can process it.
	SettleDelay time.Duration `yaml:"settle_delay"`
	// ActuatorAliases maps commands to firmware tokens, e.g. SCAN: ROTATE.
	ActuatorAliases map[string]string `yaml:"actuator_aliases,omitempty"`

	// NATSURL enables the NATS notifier and event stream when set.
	NATSURL string `yaml:"nats_url"`
	// AlertSubject is the NATS subject for alerts.
	AlertSubject string `yaml:"alert_subject"`
	// EventsSubject is the NATS subject for episode events.
	EventsSubject string `yaml:"events_subject"`
	// NotifyTimeout bounds one notification; zero leaves it unbounded.
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
	// SnapshotDir also stores each alert image on disk when set.
	SnapshotDir string `yaml:"snapshot_dir"`
	// ShutdownGrace is how long shutdown waits for in-flight notifications; zero detaches them.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`

	// HTTPAddress serves status, metrics and the websocket feed when set.
	HTTPAddress string `yaml:"http_address"`
	// GRPCAddress serves the gRPC status and health services when set.
	GRPCAddress string `yaml:"grpc_address"`

	// LogLevel is the minimum log level.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default configuration path.
	DefaultConfigFilename = "fire-sentinel.yaml"
	// DefaultEnvFilename is the optional dotenv file read before overrides.
	DefaultEnvFilename = ".env"
	// DefaultConfidenceThreshold is the minimum confidence counted as fire.
	DefaultConfidenceThreshold = 0.7
	// DefaultCaption is the alert text.
	DefaultCaption = "FIRE DETECTED! Immediate action required!"
	// DefaultCameraDevice is the first local camera.
	DefaultCameraDevice = "0"
	// DefaultCameraBufferSize keeps at most two queued frames.
	DefaultCameraBufferSize = 2
	// DefaultFrameRetryDelay is the pause after a failed frame read.
	DefaultFrameRetryDelay = 10 * time.Millisecond
	// DefaultModelPath is the detector model file.
	DefaultModelPath = "best.onnx"
	// DefaultModelInputSize is the detector input edge.
	DefaultModelInputSize = 320
	// DefaultBaudRate is the actuator line speed.
	DefaultBaudRate = 115200
	// DefaultActuatorReadTimeout bounds serial reads.
	DefaultActuatorReadTimeout = 100 * time.Millisecond
	// DefaultSettleDelay is the pause after each actuator command.
	DefaultSettleDelay = 50 * time.Millisecond
	// DefaultAlertSubject is the NATS alert subject.
	DefaultAlertSubject = "fire.alerts"
	// DefaultEventsSubject is the NATS event subject.
	DefaultEventsSubject = "fire.events"
	// DefaultLogLevel is the minimum log level.
	DefaultLogLevel = "info"
	// DefaultRequestTimeout bounds one status RPC made by the CLI.
	DefaultRequestTimeout = 5 * time.Second

	// DefaultFilePermissions is used when writing configuration files.
	DefaultFilePermissions = 0o600

	// envPrefix prefixes every environment override.
	envPrefix = "FIRE_SENTINEL_"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// ErrInvalidWindow is returned for non-positive confirmation or negative cooldown windows.
	ErrInvalidWindow = errors.New("invalid timing window")
	// ErrInvalidThreshold is returned when the confidence threshold is outside (0, 1].
	ErrInvalidThreshold = errors.New("confidence threshold must be in (0, 1]")
	// ErrInvalidBaudRate is returned for non-positive baud rates.
	ErrInvalidBaudRate = errors.New("baud rate must be positive")
	// ErrInvalidAlias is returned when an alias names an unknown command or an empty token.
	ErrInvalidAlias = errors.New("invalid actuator alias")
	// ErrInvalidModel is returned when the model input size or classes are unusable.
	ErrInvalidModel = errors.New("invalid detector model settings")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := new(Config)
	cfg.Display = true
	_ = Validate(cfg) //nolint:errcheck // Defaults always validate.

	return cfg
}

// Load reads configuration from path, applies the dotenv file and environment
// overrides, and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := &Config{Display: true}

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Run on defaults plus environment.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	// A missing .env file is normal outside development.
	if err = godotenv.Load(DefaultEnvFilename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DefaultEnvFilename, err)
	}

	if err = ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults for unset fields and rejects invalid values.
//
//nolint:cyclop,funlen // A flat list of field checks reads best in one place.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ConfirmationWindow == 0 {
		cfg.ConfirmationWindow = Window(fire.DefaultConfirmationWindow)
	}

	if cfg.CooldownWindow == 0 {
		cfg.CooldownWindow = Window(fire.DefaultCooldownWindow)
	}

	if cfg.ConfirmationWindow < 0 || cfg.CooldownWindow < 0 {
		return fmt.Errorf("%w: confirmation %s, cooldown %s", ErrInvalidWindow, cfg.ConfirmationWindow, cfg.CooldownWindow)
	}

	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}

	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, cfg.ConfidenceThreshold)
	}

	if cfg.Caption == "" {
		cfg.Caption = DefaultCaption
	}

	if cfg.FrameSize.IsZero() {
		cfg.FrameSize = DefaultFrameSize()
	}

	if cfg.CameraDevice == "" {
		cfg.CameraDevice = DefaultCameraDevice
	}

	if cfg.CameraBufferSize <= 0 {
		cfg.CameraBufferSize = DefaultCameraBufferSize
	}

	if cfg.FrameRetryDelay <= 0 {
		cfg.FrameRetryDelay = DefaultFrameRetryDelay
	}

	if cfg.ModelPath == "" {
		cfg.ModelPath = DefaultModelPath
	}

	if cfg.ModelInputSize == 0 {
		cfg.ModelInputSize = DefaultModelInputSize
	}

	if cfg.ModelInputSize < 0 || cfg.ModelInputSize%32 != 0 {
		return fmt.Errorf("%w: input size %d must be a positive multiple of 32", ErrInvalidModel, cfg.ModelInputSize)
	}

	if len(cfg.ModelClasses) == 0 {
		cfg.ModelClasses = []string{"fire"}
	}

	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}

	if cfg.BaudRate < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBaudRate, cfg.BaudRate)
	}

	if cfg.ActuatorReadTimeout <= 0 {
		cfg.ActuatorReadTimeout = DefaultActuatorReadTimeout
	}

	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	} else if cfg.SettleDelay == 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}

	for name, token := range cfg.ActuatorAliases {
		if _, err := fire.ParseCommand(name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAlias, err)
		}

		if strings.TrimSpace(token) == "" || strings.ContainsAny(token, "\r\n") {
			return fmt.Errorf("%w: token for %s must be a non-empty single line", ErrInvalidAlias, name)
		}
	}

	if cfg.AlertSubject == "" {
		cfg.AlertSubject = DefaultAlertSubject
	}

	if cfg.EventsSubject == "" {
		cfg.EventsSubject = DefaultEventsSubject
	}

	if cfg.NotifyTimeout < 0 {
		cfg.NotifyTimeout = 0
	}

	if cfg.ShutdownGrace < 0 {
		cfg.ShutdownGrace = 0
	}

	if err := validateListenAddress("http_address", cfg.HTTPAddress); err != nil {
		return err
	}

	if err := validateListenAddress("grpc_address", cfg.GRPCAddress); err != nil {
		return err
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	return nil
}

// Windows returns the state machine timing parameters.
func (c *Config) Windows() fire.Windows {
	return fire.Windows{
		Confirmation: c.ConfirmationWindow.Duration(),
		Cooldown:     c.CooldownWindow.Duration(),
	}
}

// Aliases returns the actuator aliases keyed by command.
func (c *Config) Aliases() map[fire.Command]string {
	out := make(map[fire.Command]string, len(c.ActuatorAliases))

	for name, token := range c.ActuatorAliases {
		cmd, err := fire.ParseCommand(name)
		if err != nil {
			continue
		}

		out[cmd] = strings.TrimSpace(token)
	}

	return out
}

// ApplyEnv overrides deployment-specific fields from FIRE_SENTINEL_* variables.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"RECIPIENT_ADDRESS": &cfg.RecipientAddress,
		"ACTUATOR_ENDPOINT": &cfg.ActuatorEndpoint,
		"CAMERA_DEVICE":     &cfg.CameraDevice,
		"MODEL_PATH":        &cfg.ModelPath,
		"NATS_URL":          &cfg.NATSURL,
		"SNAPSHOT_DIR":      &cfg.SnapshotDir,
		"HTTP_ADDRESS":      &cfg.HTTPAddress,
		"GRPC_ADDRESS":      &cfg.GRPCAddress,
		"LOG_LEVEL":         &cfg.LogLevel,
	}

	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := lookup(envPrefix + "BAUD_RATE"); ok {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sBAUD_RATE: %w", envPrefix, err)
		}

		cfg.BaudRate = rate
	}

	if v, ok := lookup(envPrefix + "DISPLAY"); ok {
		display, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %sDISPLAY: %w", envPrefix, err)
		}

		cfg.Display = display
	}

	return nil
}

// validateListenAddress accepts empty values and host:port pairs.
func validateListenAddress(key, addr string) error {
	if addr == "" {
		return nil
	}

	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, addr, err)
	}

	return nil
}
