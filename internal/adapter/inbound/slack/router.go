package slack

import (
	"encoding/json"
	"net/http"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/jonny/chatbridge/internal/adapter/inbound/webhook/middleware"
	"github.com/jonny/chatbridge/internal/domain/model"
)

func (a *Adapter) setupRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", a.handleEvent)
	return mux
}

// handleEvent verifies the request signature, answers url_verification and
// forwards callback events. Unsigned or mis-signed requests get 401.
func (a *Adapter) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := middleware.RawBody(r)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	verifier, err := slackapi.NewSecretsVerifier(r.Header, a.signingSecret)
	if err != nil {
		a.logger.Warn("rejecting unsigned request", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if _, err := verifier.Write(body); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := verifier.Ensure(); err != nil {
		a.logger.Warn("signature mismatch", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		a.logger.Debug("ignoring undecodable event", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))
	case slackevents.CallbackEvent:
		if a.admit(event) {
			a.bus.Publish(model.NewEvent(body, r.Header))
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// admit drops the bot's own messages and anything posted by another bot.
func (a *Adapter) admit(event slackevents.EventsAPIEvent) bool {
	msg, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return true
	}
	if msg.BotID != "" || msg.SubType == "bot_message" {
		return false
	}
	return a.botUserID == "" || msg.User != a.botUserID
}
