package status

import (
	"context"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/logger"
)

// Subscriber streams status changes.
type Subscriber interface {
	Subscribe() (<-chan *fire.Status, func())
}

// WatchHealth mirrors actuator link health into hs for both the overall
// server and the status service until ctx is done.
func WatchHealth(ctx context.Context, source Subscriber, hs *health.Server) {
	updates, cancel := source.Subscribe()
	defer cancel()

	current := healthpb.HealthCheckResponse_UNKNOWN

	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()

			return
		case s := <-updates:
			next := healthpb.HealthCheckResponse_SERVING
			if !s.LinkHealthy {
				next = healthpb.HealthCheckResponse_NOT_SERVING
			}

			if next == current {
				continue
			}

			current = next

			hs.SetServingStatus("", next)
			hs.SetServingStatus(ServiceName, next)

			logger.InfoKV(ctx, "Health status changed", "status", next.String())
		}
	}
}
