package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/syntrixbase/switchboard/internal/server/ratelimit"
)

type serverImpl struct {
	cfg    Config
	logger *slog.Logger

	httpMux    *http.ServeMux
	httpServer *http.Server

	limiter *ratelimit.Memory

	grpcServer *grpc.Server
	health     *health.Server

	mu      sync.Mutex
	started bool
}

// New creates a Service. The metrics endpoint and a plain /healthz check
// are mounted on the mux up front.
func New(cfg Config, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	s := &serverImpl{
		cfg:     cfg,
		logger:  logger,
		httpMux: http.NewServeMux(),
		health:  health.NewServer(),
	}

	if cfg.RateLimit.Enabled {
		s.limiter = ratelimit.NewMemory(cfg.RateLimit)
	}

	opts := []grpc.ServerOption{
		s.unaryInterceptors(),
		s.streamInterceptors(),
	}
	if cfg.GRPCMaxConcurrent > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.GRPCMaxConcurrent)))
	}
	s.grpcServer = grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	if cfg.EnableReflection {
		reflection.Register(s.grpcServer)
	}

	if cfg.MetricsPath != "" {
		s.httpMux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}
	s.httpMux.HandleFunc("GET /healthz", s.handleHealthz)

	return s
}

func (s *serverImpl) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	s.started = true
	httpLis, grpcLis, err := s.listen()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.httpServer = s.newHTTPServer()
	s.mu.Unlock()

	errChan := make(chan error, 2)
	go s.serveHTTP(httpLis, errChan)
	if grpcLis != nil {
		go s.serveGRPC(grpcLis, errChan)
	}

	s.SetServing(true)

	select {
	case err := <-errChan:
		s.SetServing(false)
		return err
	case <-ctx.Done():
		return nil
	}
}

func (s *serverImpl) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.health.Shutdown()

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	if s.httpServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("Stopping HTTP server")
			if err := s.httpServer.Shutdown(ctx); err != nil {
				errChan <- fmt.Errorf("http shutdown error: %w", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info("Stopping gRPC server")

		done := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn("Context deadline exceeded, forcing gRPC stop")
			s.grpcServer.Stop()
		}
	}()

	wg.Wait()
	close(errChan)

	if s.limiter != nil {
		s.limiter.Stop()
	}

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *serverImpl) RegisterHTTPHandler(pattern string, handler http.Handler) {
	s.httpMux.Handle(pattern, handler)
}

func (s *serverImpl) RegisterGRPCService(desc *grpc.ServiceDesc, impl any) {
	s.grpcServer.RegisterService(desc, impl)
}

func (s *serverImpl) HTTPMux() *http.ServeMux {
	return s.httpMux
}

func (s *serverImpl) Handler() http.Handler {
	return s.wrapMiddleware(s.httpMux)
}

func (s *serverImpl) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

func (s *serverImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp, err := s.health.Check(r.Context(), &healthpb.HealthCheckRequest{})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "not serving")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}
