package server

import (
	"context"
	"net/http"

	"google.golang.org/grpc"
)

// Service is the network layer shared by every component of a node.
type Service interface {
	// Start binds the HTTP and gRPC listeners and serves until ctx is
	// canceled or a listener fails.
	Start(ctx context.Context) error

	// Stop drains both listeners, forcing them closed when ctx expires.
	Stop(ctx context.Context) error

	// RegisterHTTPHandler must be called before Start.
	RegisterHTTPHandler(pattern string, handler http.Handler)

	// RegisterGRPCService must be called before Start.
	RegisterGRPCService(desc *grpc.ServiceDesc, impl any)

	// HTTPMux returns the mux components mount their routes on.
	HTTPMux() *http.ServeMux

	// Handler returns the mux wrapped in the middleware chain.
	Handler() http.Handler

	// SetServing flips the gRPC health status of the node.
	SetServing(serving bool)
}
