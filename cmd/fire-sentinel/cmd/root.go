package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/fire-sentinel/internal/config"
	"github.com/oshokin/fire-sentinel/internal/logger"
	"github.com/oshokin/fire-sentinel/internal/service/checker"
	"github.com/oshokin/fire-sentinel/internal/service/server"
	"github.com/oshokin/fire-sentinel/internal/service/setup"
	"github.com/oshokin/fire-sentinel/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	runOptions    server.Options
	statusOptions checker.Options
	setupOptions  setup.Options

	// rootCmd runs the controller when no subcommand is given.
	rootCmd = &cobra.Command{
		Use:   "fire-sentinel",
		Short: "Detect fire on a camera feed and drive a suppression actuator.",
		Long: `Reads frames from a camera, detects fire with an ONNX model and debounces the
signal through a confirmation window before commanding the actuator to fire and
sending one alert per episode. After a cooldown with no fire the actuator
resumes scanning.

Settings come from the YAML configuration file, an optional .env file and
FIRE_SENTINEL_* environment variables.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runController,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the fire detection controller (default).",
		Args:  cobra.NoArgs,
		RunE:  runController,
	}

	statusCmd = &cobra.Command{
		Use:   "status [grpc-address]",
		Short: "Print the status of a running controller.",
		Long: `Queries the gRPC status service of a running controller and prints the status
document as JSON. The address defaults to grpc_address from the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if len(args) > 0 {
				statusOptions.ServerAddress = args[0]
			}

			statusOptions.ConfigPath = configPath
			statusOptions.Out = cmd.OutOrStdout()

			return checker.Run(ctx, &statusOptions)
		},
	}

	initConfigCmd = &cobra.Command{
		Use:   "init-config",
		Short: "Write a configuration file with every default filled in.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupOptions.ConfigPath = configPath

			return setup.Run(cmd.Context(), &setupOptions)
		},
	}
)

func runController(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	runOptions.ConfigPath = configPath

	return server.Run(ctx, &runOptions)
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	return signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
}

// Execute runs the fire-sentinel CLI and exits with non-zero status on error.
func Execute() {
	defer logger.Sync()

	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error(context.Background(), err)
		logger.Sync()
		os.Exit(1)
	}
}

// runFlags binds the controller flags; root and run share them.
func runFlags(flags *pflag.FlagSet) {
	flags.StringVar(&runOptions.LogLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	flags.BoolVar(&runOptions.Headless, "headless", false, "never open the preview window")
	flags.BoolVar(&runOptions.AllowMultiple, "allow-multiple", false, "skip the check for other running instances")
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")

	runFlags(rootCmd.Flags())
	runFlags(runCmd.Flags())

	statusCmd.Flags().BoolVarP(&statusOptions.Watch, "watch", "w", false, "keep polling until interrupted")
	statusCmd.Flags().
		DurationVar(&statusOptions.PollInterval, "interval", checker.DefaultPollInterval, "polling interval with --watch")
	statusCmd.Flags().
		DurationVar(&statusOptions.Timeout, "timeout", config.DefaultRequestTimeout, "per-request timeout")

	initConfigCmd.Flags().BoolVarP(&setupOptions.Force, "force", "f", false, "overwrite an existing file")
	initConfigCmd.Flags().
		StringVar(&setupOptions.ActuatorEndpoint, "actuator-endpoint", "", "serial port of the actuator")
	initConfigCmd.Flags().
		StringVar(&setupOptions.RecipientAddress, "recipient", "", "alert recipient address")

	rootCmd.AddCommand(runCmd, statusCmd, initConfigCmd)
}
