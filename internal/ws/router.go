package ws

import (
	"context"

	"dm-service/internal/events"
	"dm-service/internal/logging"
	"dm-service/internal/models"
	"dm-service/internal/observability"
)

// Router pushes named events to the live connections of a user. Delivery is
// best effort: a user without connections simply misses the event.
type Router struct {
	hub *Hub
	log logging.Logger
}

// NewRouter builds a Router on top of hub.
func NewRouter(hub *Hub, log logging.Logger) *Router {
	return &Router{hub: hub, log: log}
}

// DeliverTo pushes event to every connection of userID and returns the
// number of connections that accepted it.
func (r *Router) DeliverTo(userID, event string, payload any) int {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		r.log.Error(context.Background(), "encode push event", "event", event, "err", err)
		return 0
	}
	n := r.hub.SendTo(userID, frame)
	observability.ObserveDelivery(event, n)
	return n
}

// Broadcast pushes event to every live connection.
func (r *Router) Broadcast(event string, payload any) int {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		r.log.Error(context.Background(), "encode push event", "event", event, "err", err)
		return 0
	}
	n := r.hub.SendAll(frame)
	observability.ObserveDelivery(event, n)
	return n
}

// PushEvents lists the events the router consumes from the bus.
var PushEvents = []string{
	models.EventNewMessage,
	models.EventUpdatedMessage,
	models.EventChatRequest,
	models.EventProfileUpdated,
}

// Attach subscribes the router to bus.
func (r *Router) Attach(bus events.Bus) {
	for _, name := range PushEvents {
		bus.Subscribe(name, r.handle)
	}
}

func (r *Router) handle(ctx context.Context, ev events.Event) {
	var n int
	if ev.Target == "" {
		n = r.Broadcast(ev.Name, ev.Payload)
	} else {
		n = r.DeliverTo(ev.Target, ev.Name, ev.Payload)
	}
	r.log.Debug(ctx, "push event routed", "event", ev.Name, "target", ev.Target, "connections", n)
}
