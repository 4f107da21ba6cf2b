package utils

import "github.com/google/uuid"

// NewID returns a fresh connection identifier.
func NewID() string {
	return uuid.NewString()
}
