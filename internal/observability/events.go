package observability

import "time"

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// WSEvent describes one live connection lifecycle transition.
type WSEvent struct {
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason"`
}

// Identity is who a connection belongs to.
type Identity struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
	IP       string `json:"ip"`
}

// NewWSEnvelope builds the ws_events envelope published on connect,
// disconnect and error.
func NewWSEnvelope(event, connID, reason string, since time.Time, id Identity) EventEnvelope {
	var duration int64
	if !since.IsZero() {
		duration = time.Since(since).Milliseconds()
	}
	return EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": WSEvent{
				Event:      event,
				ConnID:     connID,
				DurationMS: duration,
				Reason:     reason,
			},
			"identity": id,
		},
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
