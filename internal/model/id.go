package model

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID generates a new ULID string for use as a journal entry identifier.
func NewID() string {
	return ulid.Make().String()
}

// NewExecutionID mints a fresh query execution identifier. Identifiers are
// random (version 4) UUIDs rendered in their canonical 36-character form.
func NewExecutionID() string {
	return uuid.NewString()
}
