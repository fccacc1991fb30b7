package events

import "testing"

func TestName(t *testing.T) {
	cases := map[string]any{
		"assignment":      AssignmentEvent{},
		"rejection":       RejectionEvent{},
		"cancellation":    CancellationEvent{},
		"reschedule":      RescheduleEvent{},
		"status":          StatusEvent{},
		"maintenance":     MaintenanceEvent{},
		"location":        LocationEvent{},
		"vehicle_removed": VehicleRemovedEvent{},
		"":                42,
	}
	for want, ev := range cases {
		if got := Name(ev); got != want {
			t.Errorf("Name(%T) = %q, want %q", ev, got, want)
		}
	}
}
