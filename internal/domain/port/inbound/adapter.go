package inbound

import (
	"context"
	"net/http"

	"github.com/jonny/chatbridge/internal/domain/model"
)

// Adapter presents one chat platform behind a fixed lifecycle and the
// normalized activity/message model.
type Adapter interface {
	// ServiceName is the constant platform tag, e.g. "groupme".
	ServiceName() string
	// ServiceID identifies this adapter instance.
	ServiceID() string

	// Connect starts the webhook transport, if any, exactly once per session.
	// Calling it while connected returns the same status without side effects.
	Connect(ctx context.Context) (model.Status, error)
	// Disconnect stops the transport if running. It is idempotent.
	Disconnect(ctx context.Context) error

	// Listen subscribes to normalized activities. The channel is closed when
	// ctx is done. Malformed inbound payloads are dropped, never surfaced.
	Listen(ctx context.Context) (<-chan model.Activity, error)
	// Send validates and dispatches one outbound message.
	Send(ctx context.Context, msg model.Message) (model.Status, error)

	// Users returns the platform roster or model.ErrNotSupported.
	Users(ctx context.Context) ([]model.User, error)
	// Channels returns the cached, normalized channel listing.
	Channels(ctx context.Context) ([]model.Channel, error)

	// Router returns the webhook route handler for mounting on an external
	// server, or nil when the adapter serves it on its own transport.
	Router() http.Handler
}
