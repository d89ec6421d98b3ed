package services

import (
	"context"
	"log/slog"
)

// Start launches the broker bridge, the call agent and the listeners. Listener failures
// are returned on the channel, which is closed once the listeners stop.
func (m *Manager) Start(ctx context.Context) (<-chan error, error) {
	if m.broker != nil {
		if err := m.broker.Start(ctx); err != nil {
			return nil, err
		}
	}

	if m.peer != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.peer.Run(ctx)
		}()
	}

	errs := make(chan error, 1)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(errs)
		if err := m.srv.Start(ctx); err != nil {
			slog.Error("Server stopped with error", "error", err)
			errs <- err
		}
	}()
	return errs, nil
}
