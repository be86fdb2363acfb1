package stream

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/lonelydomino/pilkchat-sub000/internal/models"
	"github.com/lonelydomino/pilkchat-sub000/internal/observability"
)

const streamRoutingKey = "stream_events.connections"

// Handler serves the long-lived event-stream endpoint.
//
// Reconnect contract: there is no resume token and no replay. A client that
// loses the stream reopens it after a fixed delay, receives a fresh
// connected event, and reconciles anything it missed through the unread and
// notification polling endpoints.
type Handler struct {
	registry          *Registry
	heartbeatInterval time.Duration
}

// NewHandler constructs a Handler. A non-positive interval falls back to 30s.
func NewHandler(registry *Registry, heartbeatInterval time.Duration) *Handler {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	return &Handler{registry: registry, heartbeatInterval: heartbeatInterval}
}

// Stream upgrades the request into a text/event-stream connection and holds
// it open until the client goes away. Every exit path runs the same deferred
// cleanup: heartbeat ticker stopped, subscriber unregistered.
func (h *Handler) Stream(c *gin.Context) {
	userID := c.GetInt("userID")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
		return
	}

	ctx, span := otel.Tracer("realtime-service/stream").Start(c.Request.Context(), "stream.handshake")
	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	headers := observability.BuildHeaders(requestID, traceID)
	identity := observability.StreamIdentity{
		UserID:   userID,
		DeviceID: observability.DeviceIDFromRequest(c.Request),
		IP:       observability.IPFromRequest(c.Request),
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	sub := NewSubscriber(userID, newConnID())
	h.registry.Register(userID, sub)
	observability.IncStreamActive()
	observability.IncStreamEvent("stream_connect")
	_ = observability.PublishEvent(ctx, streamRoutingKey, observability.NewStreamEvent("stream_connect",
		observability.StreamEventPayload{ConnID: sub.ConnID, Event: "stream_connect"}, identity), headers)

	var closeReason string
	defer func() {
		h.registry.Unregister(userID, sub)
		observability.DecStreamActive()
		observability.IncStreamEvent("stream_disconnect")
		_ = observability.PublishEvent(ctx, streamRoutingKey, observability.NewStreamEvent("stream_disconnect",
			observability.StreamEventPayload{
				ConnID:     sub.ConnID,
				Event:      "stream_disconnect",
				DurationMs: time.Since(sub.ConnectedAt).Milliseconds(),
				Reason:     closeReason,
			}, identity), headers)
	}()

	// The connected event goes to this connection only, never through the
	// registry.
	if err := writeEvent(c.Writer, models.StreamEvent{Type: models.EventConnected, UserID: userID}); err != nil {
		closeReason = err.Error()
		span.End()
		return
	}
	span.End()

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			closeReason = "client closed"
			return

		case <-ticker.C:
			// Heartbeats carry no application data; they only defeat
			// idle-timeout closure by proxies between us and the client.
			hb := models.StreamEvent{
				Type:      models.EventHeartbeat,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}
			if err := writeEvent(c.Writer, hb); err != nil {
				closeReason = err.Error()
				observability.IncStreamEvent("stream_error")
				return
			}

		case frame, ok := <-sub.Frames():
			if !ok {
				closeReason = "subscriber dropped"
				return
			}
			if err := writeFrame(c.Writer, frame); err != nil {
				closeReason = err.Error()
				observability.IncStreamEvent("stream_error")
				return
			}
		}
	}
}

func writeEvent(w gin.ResponseWriter, event models.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return writeFrame(w, data)
}

func writeFrame(w gin.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
