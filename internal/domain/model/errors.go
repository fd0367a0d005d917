package model

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrNotSupported is returned by operations a platform cannot serve.
	ErrNotSupported = errors.New("not supported")

	// ErrTransportNotConfigured is returned by Listen on adapters that need
	// their own webhook transport but were built without one.
	ErrTransportNotConfigured = errors.New("webhook transport not configured")
)

// ConfigError reports a missing or invalid adapter credential.
type ConfigError struct {
	Service string
	Field   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s must be set", e.Service, e.Field)
}

// UnsupportedTypeError is returned by Send for object types outside the
// platform's allow-list.
type UnsupportedTypeError struct {
	Service string
	Type    ObjectType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("%s: object type %q not supported", e.Service, e.Type)
}

// CheckObjectType returns an UnsupportedTypeError unless t is in allowed.
func CheckObjectType(service string, t ObjectType, allowed []ObjectType) error {
	if slices.Contains(allowed, t) {
		return nil
	}
	return &UnsupportedTypeError{Service: service, Type: t}
}

func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrNotSupported
}
