package recordstore

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("record not found")

// Record holds everything needed to recreate a simulated instance:
// the engine variant and its construction arguments. Args is an
// opaque JSON array owned by the engine that produced it.
type Record struct {
	ClassName string          `json:"className"`
	Args      json.RawMessage `json:"args"`
}

// Store is the durable key-value store for lifecycle records, keyed
// by instance id and grouped by class name.
type Store interface {
	// Keys returns the ids of all stored records.
	Keys(ctx context.Context) ([]string, error)
	// GetItem returns the record for id, or ErrNotFound.
	GetItem(ctx context.Context, id string) (Record, error)
	// SetItem upserts the record for id.
	SetItem(ctx context.Context, id string, rec Record) error
	// RemoveItem deletes the record for id. Absent ids are not an error.
	RemoveItem(ctx context.Context, id string) error
	Close() error
}
