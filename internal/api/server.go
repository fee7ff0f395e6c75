// Package api exposes the backtester over gRPC, with Prometheus metrics
// served on a separate HTTP port.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"backtester/internal/config"
)

const shutdownTimeout = 10 * time.Second

// Server hosts the Backtester gRPC service and the /metrics endpoint.
type Server struct {
	grpcAddr    string
	metricsAddr string // empty disables /metrics

	grpc     *grpc.Server
	registry *prometheus.Registry
	log      *slog.Logger
}

// NewServer creates a Server for svc using the listen addresses in cfg.
func NewServer(cfg *config.Config, svc BacktesterServer) *Server {
	log := slog.Default().With("component", "api")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := NewMetrics(reg)

	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		m.UnaryInterceptor(),
		LoggingInterceptor(log),
	))
	RegisterBacktesterServer(gs, svc)
	reflection.Register(gs)

	s := &Server{
		grpcAddr: net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.GRPCPort)),
		grpc:     gs,
		registry: reg,
		log:      log,
	}
	if cfg.Server.MetricsPort >= 0 {
		s.metricsAddr = net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.MetricsPort))
	}
	return s
}

// MetricsHandler serves the server's Prometheus registry.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Serve serves gRPC on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

// ListenAndServe starts the gRPC and metrics listeners and blocks until ctx
// is cancelled or either listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.grpcAddr, err)
	}

	var metricsSrv *http.Server
	if s.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.MetricsHandler())
		metricsSrv = &http.Server{Addr: s.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("grpc listening", "addr", lis.Addr().String())
		return s.grpc.Serve(lis)
	})

	if metricsSrv != nil {
		g.Go(func() error {
			s.log.Info("metrics listening", "addr", s.metricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down")
		s.grpc.GracefulStop()
		if metricsSrv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return metricsSrv.Shutdown(sctx)
		}
		return nil
	})

	return g.Wait()
}
