//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/fire-sentinel/internal/api/grpc/status"
	"github.com/oshokin/fire-sentinel/internal/config"
)

// Client wraps the status and health gRPC services with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the controller.
	conn *grpc.ClientConn
	// health is the standard health client.
	health healthpb.HealthClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor is sent as metadata when set.
	actor string
	// dialOptions are passed to grpc.NewClient.
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor attributes every call to actor.
func WithActor(actor Actor) Option {
	return func(c *Client) {
		c.actor = actor.String()
	}
}

// WithDialOptions appends grpc dial options, e.g. a bufconn dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial creates a client for the controller's gRPC address.
// Note: this uses insecure transport credentials; expose the status port on a
// trusted network only.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultRequestTimeout,
		dialOptions: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
	}

	for _, opt := range opts {
		opt(client)
	}

	// Use the non-context NewClient API recommended by grpc-go.
	conn, err := grpc.NewClient(address, client.dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial fire-sentinel: %w", err)
	}

	client.conn = conn
	client.health = healthpb.NewHealthClient(conn)

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetStatus retrieves the controller status document.
func (c *Client) GetStatus(ctx context.Context) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	out := new(structpb.Struct)

	if err := c.conn.Invoke(callCtx, status.GetStatusMethod, new(emptypb.Empty), out); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	return out, nil
}

// Health checks the serving status of the status service.
func (c *Client) Health(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.health.Check(callCtx, &healthpb.HealthCheckRequest{Service: status.ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("check health: %w", err)
	}

	return resp.GetStatus(), nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.actor != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, status.ActorMetadataKey, c.actor)
	}

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
