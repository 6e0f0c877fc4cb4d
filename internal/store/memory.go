package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

// MemoryStore keeps games in process memory
type MemoryStore struct {
	games map[string]Snapshot
	mu    sync.RWMutex
	now   func() time.Time
}

// NewMemoryStore creates a new in-memory game store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]Snapshot),
		now:   time.Now,
	}
}

// Create stores a new game, assigning an ID when it has none
func (s *MemoryStore) Create(_ context.Context, g models.Game) (Snapshot, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.games[g.ID]; exists {
		return Snapshot{}, ErrExists
	}
	snap := Snapshot{Game: g.Clone(), Version: 1, UpdatedAt: s.now()}
	s.games[g.ID] = snap
	return cloneSnapshot(snap), nil
}

// Get retrieves a game by ID
func (s *MemoryStore) Get(_ context.Context, id string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, exists := s.games[id]
	if !exists {
		return Snapshot{}, ErrNotFound
	}
	return cloneSnapshot(snap), nil
}

// Update runs fn under the write lock, so no other write can interleave
func (s *MemoryStore) Update(_ context.Context, id string, fn Mutator) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, exists := s.games[id]
	if !exists {
		return Snapshot{}, ErrNotFound
	}

	next, err := fn(snap.Game.Clone())
	if err != nil {
		return cloneSnapshot(snap), err
	}
	next.ID = id
	snap = Snapshot{Game: next.Clone(), Version: snap.Version + 1, UpdatedAt: s.now()}
	s.games[id] = snap
	return cloneSnapshot(snap), nil
}

// List returns all games ordered by ID
func (s *MemoryStore) List(_ context.Context) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.games))
	for _, snap := range s.games {
		out = append(out, cloneSnapshot(snap))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Game.ID < out[j].Game.ID })
	return out, nil
}

// Delete removes a game
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}

func (s *MemoryStore) Close() error { return nil }

func cloneSnapshot(s Snapshot) Snapshot {
	s.Game = s.Game.Clone()
	return s
}
