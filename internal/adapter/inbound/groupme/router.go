package groupme

import (
	"encoding/json"
	"net/http"

	"github.com/jonny/chatbridge/internal/adapter/inbound/webhook/middleware"
	"github.com/jonny/chatbridge/internal/domain/model"
)

// gateFields are the callback fields the identity gate inspects.
type gateFields struct {
	System bool   `json:"system"`
	Name   string `json:"name"`
}

func (a *Adapter) setupRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /{$}", a.handleCallback)
	return mux
}

// handleCallback acknowledges every callback with 200. System messages and the
// bot's own posts are not emitted.
func (a *Adapter) handleCallback(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	body, err := middleware.RawBody(r)
	if err != nil {
		a.logger.Warn("reading callback body", "error", err)
		return
	}
	if !a.admit(body) {
		return
	}
	n := a.bus.Publish(model.NewEvent(body, r.Header))
	a.logger.Debug("callback emitted", "subscribers", n)
}

// admit is the identity gate.
func (a *Adapter) admit(body []byte) bool {
	var fields gateFields
	if err := json.Unmarshal(body, &fields); err != nil {
		a.logger.Debug("ignoring undecodable callback", "error", err)
		return false
	}
	if fields.System {
		a.logger.Debug("ignoring system message")
		return false
	}
	if fields.Name == a.username {
		a.logger.Debug("ignoring self-echo", "name", fields.Name)
		return false
	}
	return true
}
