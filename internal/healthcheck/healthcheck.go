// Package healthcheck serves and queries the gRPC health protocol. Vox
// reports SERVING only while a classifier model is loaded.
package healthcheck

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/TecharoHQ/vox"
	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/timeout"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the health service name Vox registers besides the overall "".
const Service = "vox"

func interceptorLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

type Server struct {
	srv    *grpc.Server
	health *health.Server
}

// New builds a health server. A non-empty token is required from callers as
// a bearer token.
func New(token string) *Server {
	srvMetrics := grpcprom.NewServerMetrics(
		grpcprom.WithServerHandlingTimeHistogram(
			grpcprom.WithHistogramBuckets([]float64{0.001, 0.01, 0.1, 0.3, 0.6, 1, 3}),
		),
	)
	prometheus.DefaultRegisterer.Register(srvMetrics)

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			srvMetrics.UnaryServerInterceptor(),
			logging.UnaryServerInterceptor(interceptorLogger(slog.With("subsystem", "healthcheck")), logging.WithLogOnEvents(logging.FinishCall)),
			authUnaryServerInterceptor(token),
		),
	)

	hs := health.NewServer()
	healthv1.RegisterHealthServer(srv, hs)
	srvMetrics.InitializeMetrics(srv)

	result := &Server{srv: srv, health: hs}
	result.SetServing(false)

	return result
}

// SetServing flips both the overall and the vox service status.
func (s *Server) SetServing(serving bool) {
	st := healthv1.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthv1.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(Service, st)
}

func (s *Server) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

// Stop marks the service as shutting down and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

// Check asks the health server at addr about Service and fails unless it is
// SERVING.
func Check(ctx context.Context, addr, token string) error {
	clMetrics := grpcprom.NewClientMetrics(
		grpcprom.WithClientHandlingTimeHistogram(
			grpcprom.WithHistogramBuckets([]float64{0.001, 0.01, 0.1, 0.3, 0.6, 1, 3}),
		),
	)
	prometheus.DefaultRegisterer.Register(clMetrics)

	conn, err := grpc.NewClient(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(
			timeout.UnaryClientInterceptor(2*time.Second),
			clMetrics.UnaryClientInterceptor(),
			authUnaryClientInterceptor(token),
		),
		grpc.WithUserAgent(fmt.Sprint("Techaro/vox:", vox.Version)),
	)
	if err != nil {
		return fmt.Errorf("can't dial health service at %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthv1.NewHealthClient(conn).Check(ctx, &healthv1.HealthCheckRequest{Service: Service})
	if err != nil {
		return fmt.Errorf("can't check health at %s: %w", addr, err)
	}

	if resp.Status != healthv1.HealthCheckResponse_SERVING {
		return fmt.Errorf("vox is not healthy, wanted %s but got %s", healthv1.HealthCheckResponse_SERVING, resp.Status)
	}

	return nil
}
