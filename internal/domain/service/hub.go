package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonny/chatbridge/internal/domain/model"
	"github.com/jonny/chatbridge/internal/domain/port/inbound"
)

var ErrUnknownService = errors.New("unknown service id")

// Envelope tags an activity with the adapter it came from.
type Envelope struct {
	ServiceID   string
	ServiceName string
	Activity    model.Activity
}

// Hub lets a single consumer drive several adapters through one surface.
type Hub struct {
	mu       sync.RWMutex
	adapters map[string]inbound.Adapter
	order    []string
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		adapters: make(map[string]inbound.Adapter),
		logger:   logger,
	}
}

// Register adds an adapter keyed by its service ID.
func (h *Hub) Register(a inbound.Adapter) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := a.ServiceID()
	if _, exists := h.adapters[id]; exists {
		return fmt.Errorf("adapter %s/%s already registered", a.ServiceName(), id)
	}
	h.adapters[id] = a
	h.order = append(h.order, id)
	return nil
}

// Adapter returns the adapter registered under serviceID.
func (h *Hub) Adapter(serviceID string) (inbound.Adapter, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	a, ok := h.adapters[serviceID]
	return a, ok
}

// Adapters returns the registered adapters in registration order.
func (h *Hub) Adapters() []inbound.Adapter {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]inbound.Adapter, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.adapters[id])
	}
	return out
}

// ConnectAll connects every adapter concurrently. Statuses are returned in
// registration order; the first failure is returned as the error.
func (h *Hub) ConnectAll(ctx context.Context) ([]model.Status, error) {
	adapters := h.Adapters()
	statuses := make([]model.Status, len(adapters))

	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			status, err := a.Connect(ctx)
			if err != nil {
				return fmt.Errorf("connect %s: %w", a.ServiceName(), err)
			}
			statuses[i] = status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return statuses, err
	}
	return statuses, nil
}

// DisconnectAll disconnects every adapter and joins the errors.
func (h *Hub) DisconnectAll(ctx context.Context) error {
	var errs []error
	for _, a := range h.Adapters() {
		if err := a.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %s: %w", a.ServiceName(), err))
		}
	}
	return errors.Join(errs...)
}

// Listen merges the activity streams of every adapter. Adapters that cannot
// listen without their own transport are skipped with a warning. The merged
// channel closes when every underlying stream has closed.
func (h *Hub) Listen(ctx context.Context) (<-chan Envelope, error) {
	out := make(chan Envelope)
	var wg sync.WaitGroup

	for _, a := range h.Adapters() {
		stream, err := a.Listen(ctx)
		if errors.Is(err, model.ErrTransportNotConfigured) {
			h.logger.Warn("adapter has no webhook transport, not listening",
				"service", a.ServiceName(), "service_id", a.ServiceID())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("listen %s: %w", a.ServiceName(), err)
		}

		wg.Add(1)
		go func(a inbound.Adapter, stream <-chan model.Activity) {
			defer wg.Done()
			for activity := range stream {
				env := Envelope{ServiceID: a.ServiceID(), ServiceName: a.ServiceName(), Activity: activity}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}(a, stream)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

// Send routes msg to the adapter registered under serviceID.
func (h *Hub) Send(ctx context.Context, serviceID string, msg model.Message) (model.Status, error) {
	a, ok := h.Adapter(serviceID)
	if !ok {
		return model.Status{}, fmt.Errorf("%w: %s", ErrUnknownService, serviceID)
	}
	return a.Send(ctx, msg)
}
