package status

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/logger"
)

// ActorMetadataKey carries the user@host of the caller for audit logging.
const ActorMetadataKey = "x-fire-sentinel-actor"

// Source provides the status snapshot served by GetStatus.
type Source interface {
	Snapshot() *fire.Status
}

// Server implements StatusServiceServer.
type Server struct {
	source Source
}

// NewServer creates a status server reading from source.
func NewServer(source Source) *Server {
	return &Server{
		source: source,
	}
}

// GetStatus returns the current status document.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snapshot := s.source.Snapshot()

	result, err := structpb.NewStruct(snapshot.Fields())
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode status", "error", err)

		return nil, grpcstatus.Error(codes.Internal, "unable to encode status")
	}

	logger.DebugKV(ctx, "Status requested", "actor", actorFromContext(ctx), "phase", snapshot.Phase)

	return result, nil
}

// actorFromContext returns the caller identity sent in metadata, if any.
func actorFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	if values := md.Get(ActorMetadataKey); len(values) > 0 {
		return values[0]
	}

	return ""
}
