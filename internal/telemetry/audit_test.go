package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lonelydomino/pilkchat-sub000/internal/mocks"
	"github.com/lonelydomino/pilkchat-sub000/internal/telemetry"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.realtime", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(telemetry.AuditEnvelope)
		if !ok {
			return false
		}
		return envelope.SchemaVersion == 1 &&
			envelope.EventType == "audit_log" &&
			envelope.Service == "realtime-service" &&
			envelope.RequestID == "req-1" &&
			envelope.UserID != nil && *envelope.UserID == 7 &&
			envelope.Payload.Level == "info" &&
			envelope.Payload.Text == "conversation 3 marked read"
	})).Return(nil).Once()

	emitter := telemetry.NewAuditEmitter(publisher, "audit.realtime", "realtime-service", "test")
	userID := 7
	emitter.Emit(context.Background(), "info", "conversation 3 marked read", "req-1", &userID)

	publisher.AssertExpectations(t)
}

func TestAuditEmitterWithoutPublisherIsNoop(t *testing.T) {
	emitter := telemetry.NewAuditEmitter(nil, "audit.realtime", "realtime-service", "test")
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "info", "dropped on the floor", "req-2", nil)
	})

	var nilEmitter *telemetry.AuditEmitter
	require.NotPanics(t, func() {
		nilEmitter.Emit(context.Background(), "warn", "still fine", "req-3", nil)
	})
}
