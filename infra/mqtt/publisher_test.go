package mqtt

import (
	"fmt"
	"sync"

	"github.com/kilianp07/fleetdispatch/core/events"
	coremqtt "github.com/kilianp07/fleetdispatch/core/mqtt"
)

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []any
	// failIDs makes assignment events for these vehicles fail.
	failIDs map[string]bool
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{failIDs: make(map[string]bool)}
}

func (m *mockPublisher) PublishEvent(ev any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := ev.(events.AssignmentEvent); ok && m.failIDs[a.VehicleID] {
		return fmt.Errorf("%w: vehicle %s", coremqtt.ErrPublish, a.VehicleID)
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockPublisher) published() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.events...)
}

var _ Publisher = (*mockPublisher)(nil)
