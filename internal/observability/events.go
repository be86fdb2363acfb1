package observability

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// StreamEventPayload is the body published to the event bus for stream
// lifecycle events (connect, disconnect, error).
type StreamEventPayload struct {
	ConnID     string `json:"conn_id"`
	Event      string `json:"event"`
	DurationMs int64  `json:"duration_ms"`
	Reason     string `json:"reason"`
}

// StreamIdentity describes who was behind the connection.
type StreamIdentity struct {
	UserID   int    `json:"user_id"`
	DeviceID string `json:"device_id"`
	IP       string `json:"ip"`
}

// NewStreamEvent assembles the envelope for a stream lifecycle event.
func NewStreamEvent(name string, payload StreamEventPayload, identity StreamIdentity) EventEnvelope {
	return EventEnvelope{
		EventType: "stream_events",
		EventName: name,
		Payload: map[string]interface{}{
			"stream":   payload,
			"identity": identity,
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
