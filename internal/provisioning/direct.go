package provisioning

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leonardo-panseri/discord-coins/shared/events"
)

const (
	directAttempts   = 3
	directRetryDelay = 5 * time.Second
)

// ErrPublisherClosed is returned by Publish once the publisher has been closed.
var ErrPublisherClosed = errors.New("publisher closed")

// DirectPublisher hands purchase events straight to a Handler when no Redis is
// configured. Failed provisioning is retried in process a few times, resuming from
// the failed step. Other event types are dropped.
type DirectPublisher struct {
	handler    *Handler
	progress   *MemoryProgressStore
	retryDelay time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewDirectPublisher(provisioner Provisioner) *DirectPublisher {
	progress := NewMemoryProgressStore()
	return &DirectPublisher{
		handler:    NewHandler(provisioner, progress),
		progress:   progress,
		retryDelay: directRetryDelay,
		done:       make(chan struct{}),
	}
}

func (p *DirectPublisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	if eventType != events.ServicePurchased {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}

	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	// Provisioning outlives the request that triggered it.
	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx, event)
	}()
	return nil
}

func (p *DirectPublisher) run(ctx context.Context, event events.Event) {
	defer p.progress.Forget(event.ID)

	for attempt := 1; ; attempt++ {
		err := p.handler.Handle(ctx, event)
		if err == nil {
			return
		}
		if attempt == directAttempts {
			slog.ErrorContext(ctx, "inline provisioning failed, giving up",
				"event_id", event.ID, "attempts", attempt, "error", err)
			return
		}
		slog.WarnContext(ctx, "inline provisioning failed, retrying",
			"event_id", event.ID, "attempt", attempt, "error", err)

		select {
		case <-p.done:
			slog.ErrorContext(ctx, "publisher closed, abandoning provisioning", "event_id", event.ID)
			return
		case <-time.After(p.retryDelay):
		}
	}
}

// Close rejects further events, cancels pending retries and waits for in-flight
// provisioning to finish.
func (p *DirectPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// MemoryProgressStore is a process-local ProgressStore. Entries live until Forget.
type MemoryProgressStore struct {
	mu     sync.Mutex
	locked map[string]bool
	steps  map[string]map[string]bool
}

func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{
		locked: make(map[string]bool),
		steps:  make(map[string]map[string]bool),
	}
}

func (s *MemoryProgressStore) Lock(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked[id] {
		return false, nil
	}
	s.locked[id] = true
	return true, nil
}

func (s *MemoryProgressStore) Unlock(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locked, id)
	return nil
}

func (s *MemoryProgressStore) Done(ctx context.Context, id, step string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps[id][step], nil
}

func (s *MemoryProgressStore) Complete(ctx context.Context, id, step string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.steps[id] == nil {
		s.steps[id] = make(map[string]bool)
	}
	s.steps[id][step] = true
	return nil
}

// Forget drops everything recorded for id.
func (s *MemoryProgressStore) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locked, id)
	delete(s.steps, id)
}

// Len reports the number of held entries, locks included.
func (s *MemoryProgressStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps) + len(s.locked)
}
