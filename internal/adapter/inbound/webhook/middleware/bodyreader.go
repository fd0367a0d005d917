package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// DefaultMaxBodyBytes caps webhook bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 10 << 20

type rawBodyKey struct{}

// BodyReader reads and buffers the request body so it can be accessed multiple
// times (e.g. by a signature check and then by the event parser). The raw bytes
// are stored in the request context and retrievable with RawBody.
func BodyReader(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
			if err != nil {
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body.Close()
			if int64(len(body)) > limit {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}

			// Restore body so downstream handlers can read it again
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := context.WithValue(r.Context(), rawBodyKey{}, body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RawBody returns the buffered body, reading it directly when the request did
// not pass through BodyReader.
func RawBody(r *http.Request) ([]byte, error) {
	if body, ok := r.Context().Value(rawBodyKey{}).([]byte); ok {
		return body, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, DefaultMaxBodyBytes))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
