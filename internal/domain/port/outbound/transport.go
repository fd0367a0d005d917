package outbound

import "context"

// Transport is the webhook server an adapter owns. Listen must return once the
// listener is bound; Close stops accepting requests. A closed Transport can be
// started again.
type Transport interface {
	Listen() error
	Close(ctx context.Context) error
}
