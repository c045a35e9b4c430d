// Package uuid provides run and request ID generation.
package uuid

import (
	"github.com/google/uuid"
)

// NewID returns a UUIDv7 string, so IDs sort by creation time. It falls back
// to a random UUIDv4 if the v7 generator fails.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
