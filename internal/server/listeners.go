package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"google.golang.org/grpc"
)

// listen binds the HTTP port and, unless gRPC is disabled, the gRPC port.
// Both are bound before either is served so a busy port fails Start.
func (s *serverImpl) listen() (httpLis, grpcLis net.Listener, err error) {
	httpAddr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.HTTPPort))
	httpLis, err = net.Listen("tcp", httpAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen http %s: %w", httpAddr, err)
	}
	if s.cfg.DisableGRPC {
		return httpLis, nil, nil
	}

	grpcAddr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.GRPCPort))
	grpcLis, err = net.Listen("tcp", grpcAddr)
	if err != nil {
		_ = httpLis.Close()
		return nil, nil, fmt.Errorf("listen grpc %s: %w", grpcAddr, err)
	}
	return httpLis, grpcLis, nil
}

func (s *serverImpl) newHTTPServer() *http.Server {
	return &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.HTTPReadTimeout,
		WriteTimeout: s.cfg.HTTPWriteTimeout,
		IdleTimeout:  s.cfg.HTTPIdleTimeout,
	}
}

func (s *serverImpl) serveHTTP(lis net.Listener, errChan chan<- error) {
	s.logger.Info("HTTP server listening", "addr", lis.Addr().String())
	if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errChan <- fmt.Errorf("http server error: %w", err)
	}
}

func (s *serverImpl) serveGRPC(lis net.Listener, errChan chan<- error) {
	s.logger.Info("gRPC server listening", "addr", lis.Addr().String())
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		errChan <- fmt.Errorf("grpc server error: %w", err)
	}
}
