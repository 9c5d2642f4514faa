// Package uuid generates document identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator implements internship.IDGenerator with UUIDv7 values, which sort by
// creation time.
type Generator struct {
	newV7 func() (uuid.UUID, error)
}

// New returns a Generator backed by the system entropy source.
func New() *Generator {
	return &Generator{newV7: uuid.NewV7}
}

// NewID returns the next identifier.
func (g *Generator) NewID() (string, error) {
	id, err := g.newV7()
	if err != nil {
		return "", fmt.Errorf("document id: %w", err)
	}
	return id.String(), nil
}
