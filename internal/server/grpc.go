package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"NavLedger/internal/core"
	"NavLedger/internal/observability"
	"NavLedger/internal/query"
	"NavLedger/internal/state"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// LiveState is the engine surface for quotes against in-memory state.
type LiveState interface {
	QuoteDeposit(fundID uuid.UUID, amountE6 int64) (shares uint64, navE6 int64, err error)
	QuoteRedeem(fundID uuid.UUID, shares uint64) (valueE6, navE6 int64, err error)
	CheckADL(shortfallE6 int64) (state.ADLTriggerReason, int64, error)
}

// Ingester applies an event submitted over HTTP and returns its outcome.
type Ingester interface {
	Submit(ctx context.Context, eventType string, body []byte) (*core.Outcome, error)
}

// Admin covers the operator endpoints.
type Admin interface {
	TakeSnapshot(ctx context.Context) (sequence int64, sizeBytes int, err error)
	RebuildProjections(ctx context.Context) (replayed int64, err error)
	LatestSequence(ctx context.Context) (int64, error)
}

// ServerDeps holds all dependencies needed by the HTTP routes.
type ServerDeps struct {
	Query         query.Reader
	Live          LiveState
	Ingest        Ingester
	Admin         Admin
	HealthChecker *observability.HealthChecker
	Metrics       *observability.Metrics
	Logger        zerolog.Logger
}

// GRPCServer serves gRPC health and reflection, and the JSON API on a
// grpc-gateway ServeMux.
type GRPCServer struct {
	grpcServer   *grpc.Server
	healthServer *health.Server
	httpServer   *http.Server
	grpcAddr     string
	httpAddr     string
	mux          *runtime.ServeMux
	logger       zerolog.Logger
}

// NewGRPCServer builds both servers and registers every route.
func NewGRPCServer(grpcAddr, httpAddr string, deps *ServerDeps) (*GRPCServer, error) {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	// Reflection for grpcurl / grpcui
	reflection.Register(grpcServer)

	mux, err := NewMux(deps)
	if err != nil {
		return nil, err
	}

	return &GRPCServer{
		grpcServer:   grpcServer,
		healthServer: healthServer,
		grpcAddr:     grpcAddr,
		httpAddr:     httpAddr,
		mux:          mux,
		logger:       deps.Logger,
	}, nil
}

// SetServing flips the gRPC health status; main calls it once recovery is done.
func (s *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", st)
}

// StartGRPC starts the gRPC server (blocking).
func (s *GRPCServer) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("gRPC server shutting down")
		s.healthServer.Shutdown()
		s.grpcServer.GracefulStop()
	}()

	s.logger.Info().Str("addr", s.grpcAddr).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// StartHTTP starts the JSON API server (blocking).
func (s *GRPCServer) StartHTTP(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.httpAddr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.httpAddr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
