package model

import (
	"net/http"
	"time"
)

// Event is the raw webhook envelope placed on an adapter's internal bus by its
// route handler, before any parsing.
type Event struct {
	Body       []byte
	Headers    http.Header
	ReceivedAt time.Time

	// Group is the channel metadata resolved for the event, if the platform
	// enriches events before parsing.
	Group *Channel
}

// NewEvent copies headers so the envelope stays valid after the request ends.
func NewEvent(body []byte, headers http.Header) Event {
	return Event{
		Body:       body,
		Headers:    headers.Clone(),
		ReceivedAt: time.Now().UTC(),
	}
}

// WithGroup returns a copy of the event carrying the resolved channel.
func (e Event) WithGroup(group *Channel) Event {
	e.Group = group
	return e
}
