package persistence

import (
	"context"
	"sync"

	"github.com/veracore/veracore/internal/ports"
)

// MemoryJournal is an in-memory append-only journal for tests and
// development mode.
type MemoryJournal struct {
	mu     sync.Mutex
	events []ports.Event
}

// NewMemoryJournal creates an empty journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Append records the event with the next sequence number.
func (j *MemoryJournal) Append(ctx context.Context, event *ports.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	stored := *event
	stored.Seq = int64(len(j.events)) + 1
	stored.Payload = append([]byte(nil), event.Payload...)
	j.events = append(j.events, stored)
	event.Seq = stored.Seq
	return nil
}

// Replay yields events in append order.
func (j *MemoryJournal) Replay(ctx context.Context, fn func(event *ports.Event) error) error {
	j.mu.Lock()
	snapshot := make([]ports.Event, len(j.events))
	copy(snapshot, j.events)
	j.mu.Unlock()

	for i := range snapshot {
		if err := fn(&snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of recorded events.
func (j *MemoryJournal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.events)
}
