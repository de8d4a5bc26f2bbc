// Package notify delivers domain events to external collaborators.
// Delivery is fire-and-forget: a failed publish is logged, never
// propagated into the workflow that produced the event.
package notify

import (
	"context"
	"sync"

	"roommate-engine/internal/models"
)

// Notifier publishes one domain event.
type Notifier interface {
	Publish(ctx context.Context, event models.Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, models.Event) error { return nil }

// Recorder captures published events for assertions in tests.
type Recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *Recorder) Publish(_ context.Context, event models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a snapshot of everything published so far.
func (r *Recorder) Events() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByType filters the recorded events.
func (r *Recorder) ByType(t models.EventType) []models.Event {
	var out []models.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
