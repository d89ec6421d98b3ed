// Package services wires the components of a node together and runs their lifecycle.
package services

import (
	"sync"

	"github.com/syntrixbase/switchboard/internal/api"
	"github.com/syntrixbase/switchboard/internal/config"
	"github.com/syntrixbase/switchboard/internal/core/identity/authn"
	"github.com/syntrixbase/switchboard/internal/core/pubsub/memory"
	"github.com/syntrixbase/switchboard/internal/core/storage"
	"github.com/syntrixbase/switchboard/internal/gateway"
	"github.com/syntrixbase/switchboard/internal/publisher"
	"github.com/syntrixbase/switchboard/internal/relay"
	"github.com/syntrixbase/switchboard/internal/relay/cache"
	"github.com/syntrixbase/switchboard/internal/relay/peer"
	"github.com/syntrixbase/switchboard/internal/server"
)

// Options selects which components a process runs.
type Options struct {
	// RunAPI serves POST /v1/operations backed by the mutation publisher.
	RunAPI bool
	// RunGateway serves the realtime WebSocket and SSE endpoints.
	RunGateway bool
	// RunRelay serves /v1/relay. Without RunAPI or RunGateway the relay
	// listens on relay.listen instead of the server address.
	RunRelay bool
}

// RunsNode reports whether the options need the shared node components.
func (o Options) RunsNode() bool {
	return o.RunAPI || o.RunGateway
}

type Manager struct {
	cfg  *config.Config
	opts Options

	srv server.Service

	store     storage.Store
	broker    *memory.Broker
	authn     *authn.Authenticator
	publisher *publisher.Publisher
	rtServer  *gateway.Server
	apiServer *api.Server

	relay      *relay.Relay
	relayCache cache.Cache
	peer       *peer.Service

	wg sync.WaitGroup
}

func NewManager(cfg *config.Config, opts Options) *Manager {
	return &Manager{
		cfg:  cfg,
		opts: opts,
	}
}

// Authenticator returns the node's authenticator once Init has run.
func (m *Manager) Authenticator() *authn.Authenticator {
	return m.authn
}

// Server returns the network layer once Init has run.
func (m *Manager) Server() server.Service {
	return m.srv
}
