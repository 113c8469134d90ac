package config

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Toggles are the runtime switches administrators can flip without a restart.
type Toggles struct {
	PayEnabled     bool `json:"payEnabled"`
	DepositEnabled bool `json:"depositEnabled"`
}

type TogglePersister interface {
	SaveToggles(ctx context.Context, toggles Toggles) error
}

// ToggleStore holds the current Toggles. Readers take a lock-free snapshot per
// operation; writers are serialized and persist before publishing the new value.
type ToggleStore struct {
	current   atomic.Pointer[Toggles]
	mu        sync.Mutex
	persister TogglePersister
}

// NewToggleStore returns a store seeded with initial. persister may be nil.
func NewToggleStore(initial Toggles, persister TogglePersister) *ToggleStore {
	s := &ToggleStore{persister: persister}
	s.current.Store(&initial)
	return s
}

func (s *ToggleStore) Snapshot() Toggles {
	return *s.current.Load()
}

// Update applies fn to a copy of the current toggles. The change is only visible
// once persisted.
func (s *ToggleStore) Update(ctx context.Context, fn func(t *Toggles)) (Toggles, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.current.Load()
	fn(&next)

	if s.persister != nil {
		if err := s.persister.SaveToggles(ctx, next); err != nil {
			return s.Snapshot(), fmt.Errorf("failed to persist toggles: %w", err)
		}
	}
	s.current.Store(&next)
	return next, nil
}
