package realtime

import (
	"context"

	"github.com/carelink/dispatchd/core/events"
	"github.com/carelink/dispatchd/core/logger"
	"github.com/carelink/dispatchd/internal/eventbus"
)

// Bridge routes dispatch events from the in-process bus to hub rooms.
// Payloads carry ids and a short summary; clients refetch authoritative
// state over HTTP.
type Bridge struct {
	bus eventbus.EventBus
	hub *Hub
	log logger.Logger
	ch  <-chan eventbus.Event
}

// NewBridge wires the bus to the hub. The subscription is taken here, so
// events published after construction are buffered until Run drains them.
func NewBridge(bus eventbus.EventBus, hub *Hub, log logger.Logger) *Bridge {
	return &Bridge{bus: bus, hub: hub, log: log, ch: bus.Subscribe()}
}

// Run consumes events until the context is cancelled or the bus closes.
// It is meant to run in its own goroutine.
func (b *Bridge) Run(ctx context.Context) {
	defer b.bus.Unsubscribe(b.ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.ch:
			if !ok {
				return
			}
			b.route(ev)
		}
	}
}

func (b *Bridge) route(ev eventbus.Event) {
	switch e := ev.(type) {
	case events.AlertTriggered:
		b.hub.Publish(NewEnvelope(events.TypeEmergencyAlert, e), RoomCoordinators)
	case events.DispatchAssigned:
		rooms := []string{RoomCoordinators, RoomFamily(e.ElderID)}
		if e.DriverID != "" {
			rooms = append(rooms, RoomDriver(e.DriverID))
		}
		b.hub.Publish(NewEnvelope(events.TypeDispatchAssigned, e), rooms...)
	case events.LocationUpdated:
		b.hub.Publish(NewEnvelope(events.TypeLocationUpdate, e), RoomCoordinators, RoomFamily(e.ElderID))
	case events.AmbulanceArrived:
		b.hub.Publish(NewEnvelope(events.TypeAmbulanceArrived, e), RoomCoordinators, RoomFamily(e.ElderID))
	case events.EmergencyCompleted:
		b.hub.Publish(NewEnvelope(events.TypeEmergencyCompleted, e), RoomCoordinators, RoomFamily(e.ElderID))
	case events.DispatchStatusChanged:
		b.hub.Publish(NewEnvelope(events.TypeDispatchStatus, e), RoomCoordinators, RoomFamily(e.ElderID))
	default:
		b.log.Debugf("unrouted event %T", ev)
	}
}
