package middleware

import "net/http"

// webhookHeaders are set on every webhook response. Callbacks are consumed by
// platform servers, never rendered.
var webhookHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Cache-Control":           "no-store",
	"Content-Security-Policy": "default-src 'none'",
	"Referrer-Policy":         "no-referrer",
}

func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for k, v := range webhookHeaders {
			h.Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}
