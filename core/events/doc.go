// Package events defines the dispatch lifecycle events emitted on the event
// bus. Payloads carry entity ids and summary data only; subscribers are
// expected to re-fetch authoritative state rather than trust an event as the
// source of truth, since delivery is best-effort.
//
// Available event types:
//   - AlertTriggered: new emergency alert entered the queue
//   - DispatchAssigned: an ambulance was allocated to an alert
//   - LocationUpdated: position report from a dispatched ambulance
//   - AmbulanceArrived: the ambulance reached the emergency location
//   - EmergencyCompleted: the response finished and resources were released
//   - DispatchStatusChanged: any other dispatch state transition
package events
