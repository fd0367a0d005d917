package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonny/chatbridge/internal/domain/model"
	"github.com/jonny/chatbridge/internal/domain/port/outbound"
)

// Lifecycle is the connection state machine shared by every adapter:
// Constructed -> Connected -> Disconnected -> Connected ... with no terminal state.
type Lifecycle struct {
	mu        sync.Mutex
	serviceID string
	transport outbound.Transport
	connected bool
	logger    *slog.Logger
}

// NewLifecycle returns a disconnected lifecycle. transport may be nil when the
// adapter's routes are served by an external server.
func NewLifecycle(serviceID string, transport outbound.Transport, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{serviceID: serviceID, transport: transport, logger: logger}
}

// Connect starts the transport once per connected session. A repeated call
// re-signals the same status without touching the transport.
func (l *Lifecycle) Connect(_ context.Context) (model.Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connected {
		return model.Connected(l.serviceID), nil
	}
	if l.transport != nil {
		if err := l.transport.Listen(); err != nil {
			return model.Status{}, fmt.Errorf("start webhook transport: %w", err)
		}
	}
	l.connected = true
	l.logger.Info("adapter connected", "transport", l.transport != nil)
	return model.Connected(l.serviceID), nil
}

// Disconnect stops the transport if it is running. It is idempotent.
func (l *Lifecycle) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected {
		return nil
	}
	l.connected = false
	l.logger.Info("adapter disconnected")
	if l.transport != nil {
		if err := l.transport.Close(ctx); err != nil {
			return fmt.Errorf("stop webhook transport: %w", err)
		}
	}
	return nil
}

func (l *Lifecycle) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// HasTransport reports whether the adapter owns its webhook server.
func (l *Lifecycle) HasTransport() bool {
	return l.transport != nil
}
