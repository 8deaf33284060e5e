package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/pkg/jobs"
)

// Event types emitted after a committed change.
const (
	EventEnrollmentCreated      = "enrollment.created"
	EventEnrollmentTransitioned = "enrollment.transitioned"
)

// EventSink receives enrollment events after commit. Implementations must not block the
// caller and must not report delivery failures back to it.
type EventSink interface {
	Publish(ctx context.Context, event models.EnrollmentEvent)
}

// NopEventSink drops every event.
type NopEventSink struct{}

// Publish implements EventSink.
func (NopEventSink) Publish(context.Context, models.EnrollmentEvent) {}

type eventPublisher interface {
	Publish(ctx context.Context, event models.EnrollmentEvent) error
}

type eventQueue interface {
	TryEnqueue(job jobs.Job) error
}

// QueueEventSink hands events to a background queue whose workers forward them to the
// notification publisher.
type QueueEventSink struct {
	queue  eventQueue
	logger *zap.Logger
}

// NewQueueEventSink constructs the sink.
func NewQueueEventSink(queue eventQueue, logger *zap.Logger) *QueueEventSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueEventSink{queue: queue, logger: logger}
}

// Publish enqueues the event without waiting; a full or stopped queue only logs a warning.
func (s *QueueEventSink) Publish(ctx context.Context, event models.EnrollmentEvent) {
	job := jobs.Job{
		ID:       event.EnrollmentID + ":" + string(event.ToStatus),
		Type:     event.Type,
		Payload:  event,
		Enqueued: event.OccurredAt,
	}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.logger.Warn("enrollment event dropped",
			zap.String("enrollment_id", event.EnrollmentID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}

// EventJobHandler returns the queue handler that forwards queued events to publisher.
func EventJobHandler(publisher eventPublisher) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.EnrollmentEvent)
		if !ok {
			return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
		}
		return publisher.Publish(ctx, event)
	}
}
