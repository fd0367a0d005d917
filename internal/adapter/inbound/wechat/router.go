package wechat

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"slices"
	"strings"

	"github.com/jonny/chatbridge/internal/adapter/inbound/webhook/middleware"
	"github.com/jonny/chatbridge/internal/domain/model"
)

func (a *Adapter) setupRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.handleVerify)
	mux.HandleFunc("POST /{$}", a.handleMessage)
	return mux
}

// handleVerify answers the platform's server-verification challenge.
func (a *Adapter) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !VerifySignature(a.serviceID, q.Get("timestamp"), q.Get("nonce"), q.Get("signature")) {
		a.logger.Warn("signature mismatch on verification request", "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(q.Get("echostr")))
}

// handleMessage forwards the XML body to the pipeline and acknowledges with 200.
func (a *Adapter) handleMessage(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	body, err := middleware.RawBody(r)
	if err != nil {
		a.logger.Warn("reading message body", "error", err)
		return
	}
	a.bus.Publish(model.NewEvent(body, r.Header))
}

// Signature is the hex SHA-1 of token, timestamp and nonce sorted and joined.
func Signature(token, timestamp, nonce string) string {
	parts := []string{token, timestamp, nonce}
	slices.Sort(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])
}

// VerifySignature reports whether signature matches the expected digest.
func VerifySignature(token, timestamp, nonce, signature string) bool {
	expected := Signature(token, timestamp, nonce)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}
