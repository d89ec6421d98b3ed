package services

import (
	"context"
	"log/slog"
)

// Shutdown stops components in reverse dependency order: listeners, then
// realtime clients, then the broker, then the data layer.
func (m *Manager) Shutdown(ctx context.Context) {
	if m.srv != nil {
		if err := m.srv.Stop(ctx); err != nil {
			slog.Error("Error stopping server", "error", err)
		}
	}

	if m.rtServer != nil {
		slog.Info("Closing realtime connections", "clients", m.rtServer.ClientCount())
		m.rtServer.Close()
	}

	if m.broker != nil {
		if err := m.broker.Close(); err != nil {
			slog.Error("Error closing broker", "error", err)
		}
	}

	if m.relayCache != nil {
		if err := m.relayCache.Close(); err != nil {
			slog.Error("Error closing relay cache", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Timeout waiting for background tasks")
	}

	if m.store != nil {
		if err := m.store.Close(ctx); err != nil {
			slog.Error("Error closing storage", "error", err)
		}
	}
}
