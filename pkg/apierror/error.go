// Package apierror describes failures reported by a chat platform's HTTP API.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a non-success answer from a platform API: either an HTTP status
// outside 2xx or a platform error code inside a 200 response.
type Error struct {
	Service string `json:"service"`
	Op      string `json:"op"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	prefix := e.Service
	if e.Op != "" {
		prefix += " " + e.Op
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: [%d] %s: %s", prefix, e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: [%d] %s", prefix, e.Code, e.Message)
}

func New(service, op string, code int, message string) *Error {
	return &Error{Service: service, Op: op, Code: code, Message: message}
}

// FromResponse builds an Error from a non-2xx HTTP status; body is trimmed
// and kept as detail.
func FromResponse(service, op string, status int, body []byte) *Error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 512 {
		detail = detail[:512]
	}
	return &Error{
		Service: service,
		Op:      op,
		Code:    status,
		Message: http.StatusText(status),
		Detail:  detail,
	}
}

// IsCode reports whether err is an *Error carrying code.
func IsCode(err error, code int) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func Unauthorized(service, op string) *Error {
	return New(service, op, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
}

func NotFound(service, op, resource string) *Error {
	return New(service, op, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}
