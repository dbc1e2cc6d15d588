// Package uuid generates run identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/harvestlab/topic-harvester/internal/harvest"
)

// Generator creates UUID v7 run IDs. The v7 time prefix keeps run history
// rows roughly sortable by ID.
type Generator struct{}

var _ harvest.IDGenerator = Generator{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID v7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
