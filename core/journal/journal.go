// Package journal keeps an in-memory record of dispatch decisions for
// downstream reporting.
package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// Entry is one journaled assignment. Cancelled trips are kept and marked.
type Entry struct {
	TripID        string         `json:"trip_id"`
	VehicleID     string         `json:"vehicle_id"`
	RequesterID   string         `json:"requester_id,omitempty"`
	RouteID       string         `json:"route_id,omitempty"`
	Priority      model.Priority `json:"priority"`
	Window        model.Window   `json:"window"`
	Capacity      int            `json:"capacity"`
	Emergency     bool           `json:"emergency"`
	EmergencyType string         `json:"emergency_type,omitempty"`
	Cancelled     bool           `json:"cancelled"`
	AssignedAt    time.Time      `json:"assigned_at"`
}

// Departure is a shorthand for Window.Departure.
func (e Entry) Departure() time.Time { return e.Window.Departure }

type Filter struct {
	VehicleID   string
	RequesterID string
	RouteID     string
	// EmergencyOnly keeps emergency assignments only.
	EmergencyOnly    bool
	IncludeCancelled bool
}

func (f Filter) match(e Entry) bool {
	switch {
	case f.VehicleID != "" && e.VehicleID != f.VehicleID:
		return false
	case f.RequesterID != "" && e.RequesterID != f.RequesterID:
		return false
	case f.RouteID != "" && e.RouteID != f.RouteID:
		return false
	case f.EmergencyOnly && !e.Emergency:
		return false
	case e.Cancelled && !f.IncludeCancelled:
		return false
	}
	return true
}

type Store interface {
	Record(Entry)
	List(Filter) []Entry
	Rejections() int
}

type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string]Entry
	limit   int
	order   []string
	rejects int
}

// NewMemoryStore creates a journal holding at most limit entries; older
// entries are evicted first. limit <= 0 keeps everything.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{data: map[string]Entry{}, limit: limit}
}

func (s *MemoryStore) Record(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[e.TripID]; !ok {
		s.order = append(s.order, e.TripID)
	}
	s.data[e.TripID] = e
	if s.limit > 0 && len(s.order) > s.limit {
		evict := s.order[0]
		s.order = s.order[1:]
		delete(s.data, evict)
	}
}

// Cancel marks a journaled trip as cancelled. Unknown trips are ignored.
func (s *MemoryStore) Cancel(tripID string) {
	s.mu.Lock()
	if e, ok := s.data[tripID]; ok {
		e.Cancelled = true
		s.data[tripID] = e
	}
	s.mu.Unlock()
}

// Reschedule moves a journaled trip to w. Unknown trips are ignored.
func (s *MemoryStore) Reschedule(tripID string, w model.Window) {
	s.mu.Lock()
	if e, ok := s.data[tripID]; ok {
		e.Window = w
		s.data[tripID] = e
	}
	s.mu.Unlock()
}

// Rejections returns how many dispatches ended without an assignment.
func (s *MemoryStore) Rejections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rejects
}

// List returns the matching entries ordered by departure, then trip id.
func (s *MemoryStore) List(f Filter) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Entry, 0, len(s.data))
	for _, e := range s.data {
		if f.match(e) {
			res = append(res, e)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].Departure().Equal(res[j].Departure()) {
			return res[i].Departure().Before(res[j].Departure())
		}
		return res[i].TripID < res[j].TripID
	})
	return res
}

// Listen journals the assignment, cancellation, reschedule and rejection
// events published on src until ctx is done.
func (s *MemoryStore) Listen(ctx context.Context, src eventbus.Source[eventbus.Event]) <-chan struct{} {
	return eventbus.Listen(ctx, src, func(ev eventbus.Event) {
		switch e := ev.(type) {
		case events.AssignmentEvent:
			s.Record(Entry{
				TripID:        e.TripID,
				VehicleID:     e.VehicleID,
				RequesterID:   e.RequesterID,
				RouteID:       e.RouteID,
				Priority:      e.Priority,
				Window:        e.Window,
				Capacity:      e.Capacity,
				Emergency:     e.Emergency,
				EmergencyType: e.EmergencyType,
				AssignedAt:    e.Time,
			})
		case events.CancellationEvent:
			s.Cancel(e.TripID)
		case events.RescheduleEvent:
			s.Reschedule(e.TripID, e.To)
		case events.RejectionEvent:
			s.mu.Lock()
			s.rejects++
			s.mu.Unlock()
		}
	})
}
