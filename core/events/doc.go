// Package events defines the fleet related events emitted on the event bus.
//
// Available event types:
//   - AssignmentEvent: a request was served and a trip booked
//   - RejectionEvent: a request ended without an assignment
//   - CancellationEvent: a booked trip was cancelled
//   - RescheduleEvent: a booked trip moved to a new window
//   - StatusEvent: a vehicle changed operational status
//   - MaintenanceEvent: maintenance was performed on a vehicle
//   - LocationEvent: a vehicle reported its position
package events
