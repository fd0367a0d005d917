package model

import (
	"strings"

	"github.com/google/uuid"
)

// NewServiceID returns a random identifier for an adapter instance.
func NewServiceID() string {
	return uuid.NewString()
}

// NewObjectID returns a random identifier for an object the platform left
// unnamed.
func NewObjectID() string {
	return uuid.NewString()
}

// ServiceIDOrNew keeps a configured identifier or generates one.
func ServiceIDOrNew(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return NewServiceID()
}
