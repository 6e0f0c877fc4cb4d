package store

import (
	"context"
	"errors"
	"time"

	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

var (
	ErrNotFound = errors.New("game not found")
	ErrExists   = errors.New("game already exists")
	ErrConflict = errors.New("game was modified concurrently")
)

// Snapshot is a persisted game document together with its version token
type Snapshot struct {
	Game      models.Game `json:"game"`
	Version   int64       `json:"version"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Mutator derives the next game document from the latest persisted one.
// It may be called more than once when a write loses a race, so it must be
// free of side effects. Returning an error aborts the update.
type Mutator func(models.Game) (models.Game, error)

// Store persists game documents. Update applies fn against the latest
// version and writes the result as a single versioned operation.
type Store interface {
	Create(ctx context.Context, g models.Game) (Snapshot, error)
	Get(ctx context.Context, id string) (Snapshot, error)
	Update(ctx context.Context, id string, fn Mutator) (Snapshot, error)
	List(ctx context.Context) ([]Snapshot, error)
	Close() error
}
