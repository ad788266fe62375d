package statusserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/agent"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/simulation"
)

// MinWatchInterval is the fastest rate WatchStatus streams at
const MinWatchInterval = 100 * time.Millisecond

// Source is what the status surfaces read from and control
type Source interface {
	Snapshot() simulation.Snapshot
	History(team core.TeamID) (agent.Stats, bool)
	Pause() error
	Resume() error
}

// Server implements StatusServiceServer on top of a Source
type Server struct {
	source Source
	logger zerolog.Logger
}

// NewServer creates a new status service
func NewServer(source Source, logger zerolog.Logger) *Server {
	return &Server{
		source: source,
		logger: logger.With().Str("component", "status_server").Logger(),
	}
}

// GetStatus returns the current snapshot
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := SnapshotToStruct(s.source.Snapshot())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	return out, nil
}

// GetHistory returns the full histories of the requested team
func (s *Server) GetHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := req.GetFields()["team"].GetStringValue()
	team, err := core.ParseTeam(name)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "unknown team %q", name)
	}
	stats, ok := s.source.History(team)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no controller for team %s", team)
	}
	out, err := StatsToStruct(stats)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	return out, nil
}

// WatchStatus sends a snapshot immediately and then every interval
func (s *Server) WatchStatus(req *durationpb.Duration, stream StatusService_WatchStatusServer) error {
	interval := req.AsDuration()
	if interval < MinWatchInterval {
		interval = MinWatchInterval
	}

	send := func() error {
		out, err := SnapshotToStruct(s.source.Snapshot())
		if err != nil {
			return status.Errorf(codes.Internal, "%v", err)
		}
		return stream.Send(out)
	}

	if err := send(); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stream.Context().Done():
			s.logger.Debug().Msg("Status watcher disconnected")
			return nil
		case <-ticker.C:
			if err := send(); err != nil {
				return err
			}
		}
	}
}

// Pause parks the training loop and returns the resulting snapshot
func (s *Server) Pause(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.source.Pause(); err != nil {
		return nil, status.Errorf(codes.FailedPrecondition, "cannot pause: %v", err)
	}
	return s.GetStatus(ctx, nil)
}

// Resume continues the training loop and returns the resulting snapshot
func (s *Server) Resume(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.source.Resume(); err != nil {
		return nil, status.Errorf(codes.FailedPrecondition, "cannot resume: %v", err)
	}
	return s.GetStatus(ctx, nil)
}

// NewGRPCServer builds a grpc.Server with the status, health and optionally
// reflection services registered
func NewGRPCServer(srv *Server, enableReflection bool, logger zerolog.Logger) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(logger),
			RecoveryInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			StreamLoggingInterceptor(logger),
			StreamRecoveryInterceptor(logger),
		),
	)
	RegisterStatusServiceServer(grpcServer, srv)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	if enableReflection {
		reflection.Register(grpcServer)
		logger.Info().Msg("gRPC reflection enabled")
	}
	return grpcServer, healthServer
}

// ListenAndServe serves on addr until ctx is cancelled, then marks the
// service NOT_SERVING, waits shutdownDelay and stops gracefully
func ListenAndServe(ctx context.Context, addr string, grpcServer *grpc.Server, healthServer *health.Server, shutdownDelay time.Duration, logger zerolog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", lis.Addr().String()).Msg("gRPC server listening")
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	time.Sleep(shutdownDelay)

	logger.Info().Msg("Gracefully stopping gRPC server")
	grpcServer.GracefulStop()
	return nil
}
