package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dm-service/internal/mocks"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.dm", "dm-service", "test")

	userID := "42"
	publisher.On("Publish", mock.Anything, "audit.dm", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(AuditEnvelope)
		if !ok {
			return false
		}
		return envelope.SchemaVersion == 1 &&
			envelope.EventType == "audit_log" &&
			envelope.Service == "dm-service" &&
			envelope.Environment == "test" &&
			envelope.RequestID == "req-1" &&
			envelope.UserID != nil && *envelope.UserID == "42" &&
			envelope.Payload.Level == "INFO" &&
			envelope.Payload.Text == "thread 7 resolved" &&
			envelope.OccurredAt != ""
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "thread 7 resolved", "req-1", &userID)

	publisher.AssertExpectations(t)
}

func TestAuditEmitterPublishErrorIsSwallowed(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.dm", "dm-service", "test")

	publisher.On("Publish", mock.Anything, "audit.dm", mock.Anything).Return(assert.AnError).Once()

	emitter.Emit(context.Background(), "ERROR", "boom", "req-2", nil)

	publisher.AssertExpectations(t)
}

func TestAuditEmitterNilSafe(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), "INFO", "ignored", "req-3", nil)

	emitter = NewAuditEmitter(nil, "audit.dm", "dm-service", "test")
	emitter.Emit(context.Background(), "INFO", "ignored", "req-3", nil)
}
