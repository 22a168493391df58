package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/fire-sentinel/internal/config"
	"github.com/oshokin/fire-sentinel/internal/logger"
	"github.com/oshokin/fire-sentinel/internal/service/common"
)

// Options controls the status command.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress overrides grpc_address from the configuration.
	ServerAddress string
	// Watch keeps polling instead of printing once.
	Watch bool
	// PollInterval is the delay between polls in watch mode.
	PollInterval time.Duration
	// Timeout specifies the per-RPC timeout duration.
	Timeout time.Duration
	// Out receives the status documents; defaults to stdout.
	Out io.Writer
}

// DefaultPollInterval is the watch mode polling interval.
const DefaultPollInterval = 5 * time.Second

// ErrNoServerAddress indicates that neither the flag nor the configuration names a gRPC address.
var ErrNoServerAddress = errors.New("no grpc address configured")

// Run prints the controller status.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "status")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	target, err := ResolveTarget(cfg.GRPCAddress, opts.ServerAddress)
	if err != nil {
		return err
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	dialOptions := []common.Option{common.WithCallTimeout(opts.Timeout)}

	// The actor only attributes requests in server logs, so detection failures are ignored.
	if actor, actorErr := common.DetectActor(); actorErr == nil {
		dialOptions = append(dialOptions, common.WithActor(actor))
	}

	client, err := common.Dial(ctx, target, dialOptions...)
	if err != nil {
		return fmt.Errorf("dial fire-sentinel: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	return poll(ctx, client, opts)
}

// statusClient is the part of common.Client the command uses.
type statusClient interface {
	GetStatus(ctx context.Context) (*structpb.Struct, error)
}

// poll prints once, or keeps printing until ctx is cancelled in watch mode.
func poll(ctx context.Context, client statusClient, opts *Options) error {
	if err := printStatus(ctx, client, opts.Out); err != nil {
		if !opts.Watch {
			return err
		}

		logger.ErrorKV(ctx, "Status query failed", "error", err)
	}

	if !opts.Watch {
		return nil
	}

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printStatus(ctx, client, opts.Out); err != nil {
				logger.ErrorKV(ctx, "Status query failed", "error", err)
			}
		}
	}
}

func printStatus(ctx context.Context, client statusClient, out io.Writer) error {
	doc, err := client.GetStatus(ctx)
	if err != nil {
		return err
	}

	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(doc)
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	if _, err = fmt.Fprintln(out, string(data)); err != nil {
		return fmt.Errorf("write status: %w", err)
	}

	return nil
}

// ResolveTarget picks the dial target. A listen address without a host, such
// as ":50051", is dialled on localhost.
func ResolveTarget(configAddr, override string) (string, error) {
	addr := configAddr
	if override != "" {
		addr = override
	}

	if addr == "" {
		return "", ErrNoServerAddress
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid grpc address %q: %w", addr, err)
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}

	return net.JoinHostPort(host, port), nil
}
