package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const defaultHistory = 1000

// InMemoryBus is a thread-safe in-process event bus.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry // projectID -> handlers
	history  []*Event
	maxHist  int
	nextID   int
}

type handlerEntry struct {
	id      int
	handler Handler
}

// NewInMemoryBus creates an InMemoryBus with a 1000-event history cap.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]handlerEntry),
		maxHist:  defaultHistory,
	}
}

// Publish records ev and invokes matching handlers synchronously, outside
// the bus lock. Handler errors are joined and returned after all handlers
// have run.
func (b *InMemoryBus) Publish(ctx context.Context, ev *Event) error {
	b.mu.Lock()
	b.history = append(b.history, ev)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}

	var targets []Handler
	for _, e := range b.handlers[ev.ProjectID] {
		targets = append(targets, e.handler)
	}
	if ev.ProjectID != AllProjects {
		for _, e := range b.handlers[AllProjects] {
			targets = append(targets, e.handler)
		}
	}
	b.mu.Unlock()

	var errs []error
	for _, h := range targets {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish %s: %w", ev.Type, errors.Join(errs...))
	}
	return nil
}

// Subscribe registers a handler for events of projectID (or AllProjects).
// The returned function unsubscribes the handler.
func (b *InMemoryBus) Subscribe(projectID string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[projectID] = append(b.handlers[projectID], handlerEntry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[projectID]
		filtered := entries[:0]
		for _, e := range entries {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			delete(b.handlers, projectID)
		} else {
			b.handlers[projectID] = filtered
		}
	}
}

// History returns the most recent limit events for projectID, or for every
// project when projectID is AllProjects. A limit <= 0 returns everything
// retained.
func (b *InMemoryBus) History(projectID string, limit int) ([]*Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []*Event
	for i := len(b.history) - 1; i >= 0; i-- {
		ev := b.history[i]
		if projectID == AllProjects || ev.ProjectID == projectID {
			result = append(result, ev)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	// Reverse to chronological order
	for l, r := 0, len(result)-1; l < r; l, r = l+1, r-1 {
		result[l], result[r] = result[r], result[l]
	}
	return result, nil
}
