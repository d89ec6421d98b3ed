package services

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/pion/webrtc/v4"

	"github.com/syntrixbase/switchboard/internal/api"
	"github.com/syntrixbase/switchboard/internal/core/identity"
	"github.com/syntrixbase/switchboard/internal/core/identity/authn"
	"github.com/syntrixbase/switchboard/internal/core/pubsub"
	broker "github.com/syntrixbase/switchboard/internal/core/pubsub/config"
	"github.com/syntrixbase/switchboard/internal/core/pubsub/memory"
	natsbridge "github.com/syntrixbase/switchboard/internal/core/pubsub/nats"
	redisbridge "github.com/syntrixbase/switchboard/internal/core/pubsub/redis"
	"github.com/syntrixbase/switchboard/internal/core/storage"
	storagecfg "github.com/syntrixbase/switchboard/internal/core/storage/config"
	memstore "github.com/syntrixbase/switchboard/internal/core/storage/memory"
	"github.com/syntrixbase/switchboard/internal/core/storage/mongo"
	"github.com/syntrixbase/switchboard/internal/gateway"
	"github.com/syntrixbase/switchboard/internal/publisher"
	"github.com/syntrixbase/switchboard/internal/relay"
	"github.com/syntrixbase/switchboard/internal/relay/cache"
	"github.com/syntrixbase/switchboard/internal/relay/peer"
	"github.com/syntrixbase/switchboard/internal/server"
	"github.com/syntrixbase/switchboard/internal/signaling/pion"
)

// storeFactory opens the data layer and the revocation store kept beside it.
var storeFactory = func(ctx context.Context, cfg storagecfg.Config) (storage.Store, identity.RevocationStore, error) {
	if cfg.Backend != storagecfg.BackendMongo {
		return memstore.New(), authn.NewMemoryRevocationStore(), nil
	}

	p, err := mongo.NewProvider(ctx, cfg.Mongo.URI, cfg.Mongo.DatabaseName, cfg.Mongo.ConnectTimeout)
	if err != nil {
		return nil, nil, err
	}
	store := mongo.NewStore(p)
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = p.Close(context.Background())
		return nil, nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	revocations := mongo.NewRevocationStore(p.Database(), cfg.Mongo.RevocationCollection)
	if err := revocations.EnsureIndexes(ctx); err != nil {
		_ = p.Close(context.Background())
		return nil, nil, fmt.Errorf("failed to ensure revocation indexes: %w", err)
	}
	return store, revocations, nil
}

// bridgeFactory builds the cross-node transport, or nil when the broker is local.
var bridgeFactory = func(cfg broker.Config) (pubsub.Bridge, error) {
	switch cfg.Bridge {
	case broker.BridgeNone, "":
		return nil, nil
	case broker.BridgeNATS:
		return natsbridge.NewBridge(cfg.NATS.URL, cfg.NATS.SubjectPrefix), nil
	case broker.BridgeRedis:
		return redisbridge.NewBridge(redisbridge.Options{
			Addr:          cfg.Redis.Addr,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      cfg.Redis.PoolSize,
			ChannelPrefix: cfg.Redis.ChannelPrefix,
		}), nil
	default:
		return nil, fmt.Errorf("unknown broker bridge %q", cfg.Bridge)
	}
}

func (m *Manager) Init(ctx context.Context) error {
	if !m.opts.RunsNode() && !m.opts.RunRelay {
		return fmt.Errorf("no component selected")
	}

	if m.opts.RunsNode() {
		m.srv = server.New(m.cfg.Server, slog.Default())
		if err := m.initNode(ctx); err != nil {
			return err
		}
	} else {
		srvCfg, err := relayServerConfig(m.cfg.Server, m.cfg.Relay.Listen)
		if err != nil {
			return err
		}
		m.srv = server.New(srvCfg, slog.Default())
	}

	if m.opts.RunRelay {
		if err := m.initRelay(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) initNode(ctx context.Context) error {
	store, revocations, err := storeFactory(ctx, m.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	m.store = store
	slog.Info("Initialized storage", "backend", m.cfg.Storage.Backend)

	bridge, err := bridgeFactory(m.cfg.Broker)
	if err != nil {
		return fmt.Errorf("failed to initialize broker bridge: %w", err)
	}
	m.broker = memory.New(pubsub.Options{
		BufferSize: m.cfg.Broker.BufferSize,
		Bridge:     bridge,
	})
	slog.Info("Initialized broker", "bridge", m.cfg.Broker.Bridge, "buffer_size", m.cfg.Broker.BufferSize)

	m.authn, err = authn.New(m.cfg.Identity.AuthN, revocations)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}
	slog.Info("Initialized authenticator", "issuer", m.cfg.Identity.AuthN.Issuer)

	mux := m.srv.HTTPMux()

	if m.opts.RunAPI {
		m.publisher = publisher.New(m.store, m.broker, publisher.WithLogger(slog.Default()))
		m.apiServer = api.NewServer(m.publisher, m.store, m.authn)
		m.apiServer.RegisterRoutes(mux)
		slog.Info("Registered operations API")
	}

	if m.opts.RunGateway {
		m.rtServer = gateway.NewServer(gateway.New(m.broker), m.authn, m.cfg.Gateway.Realtime)
		m.rtServer.RegisterRoutes(mux)
		slog.Info("Registered realtime gateway")
	}
	return nil
}

func (m *Manager) initRelay() error {
	c, err := cache.Open(m.cfg.Relay.Cache)
	if err != nil {
		return fmt.Errorf("failed to open relay cache: %w", err)
	}
	m.relayCache = c

	network := relay.NewHTTPNetwork(m.cfg.Relay.Upstream, m.cfg.Relay.Token, m.cfg.Relay.Timeout)
	m.relay = relay.New(c, network, relay.WithLogger(slog.Default()))
	relaySrv := relay.NewServer(m.relay)

	if m.cfg.Relay.Signal.Enabled {
		if err := m.initPeer(network); err != nil {
			return err
		}
		relaySrv.SetCaller(m.peer)
	}
	relaySrv.RegisterRoutes(m.srv.HTTPMux())

	slog.Info("Registered operation relay",
		"upstream", m.cfg.Relay.Upstream,
		"cache", m.cfg.Relay.Cache.Backend,
	)
	return nil
}

// initPeer prepares the call agent of the relay token's user. It reaches the
// node once Start runs.
func (m *Manager) initPeer(network relay.Network) error {
	subscriber, err := peer.NewRealtimeSubscriber(m.cfg.Relay.Upstream, m.cfg.Relay.Token)
	if err != nil {
		return fmt.Errorf("failed to create signal subscriber: %w", err)
	}
	var iceServers []webrtc.ICEServer
	if urls := m.cfg.Relay.Signal.ICEServers; len(urls) > 0 {
		iceServers = []webrtc.ICEServer{{URLs: urls}}
	}
	factory := pion.Factory(pion.Config{ICEServers: iceServers})
	m.peer = peer.New(m.cfg.Relay.Signal, network, subscriber, factory)
	slog.Info("Enabled call signaling", "ice_servers", m.cfg.Relay.Signal.ICEServers)
	return nil
}

// relayServerConfig points the HTTP listener at listen and turns off the
// gRPC listener, which belongs to the node.
func relayServerConfig(base server.Config, listen string) (server.Config, error) {
	host, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return server.Config{}, fmt.Errorf("invalid relay.listen %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return server.Config{}, fmt.Errorf("invalid relay.listen port %q", portStr)
	}
	cfg := base
	cfg.Host = host
	cfg.HTTPPort = port
	cfg.DisableGRPC = true
	cfg.CORS.Enabled = false
	return cfg, nil
}
