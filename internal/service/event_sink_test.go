package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/pkg/jobs"
)

type stubQueue struct {
	jobs []jobs.Job
	err  error
}

func (s *stubQueue) TryEnqueue(job jobs.Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

type stubPublisher struct {
	events []models.EnrollmentEvent
}

func (s *stubPublisher) Publish(ctx context.Context, event models.EnrollmentEvent) error {
	s.events = append(s.events, event)
	return nil
}

func TestQueueEventSinkEnqueues(t *testing.T) {
	queue := &stubQueue{}
	sink := NewQueueEventSink(queue, nil)
	event := models.EnrollmentEvent{
		Type:         EventEnrollmentTransitioned,
		EnrollmentID: "enr-1",
		ToStatus:     models.EnrollmentStatusApproved,
		OccurredAt:   time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}

	sink.Publish(context.Background(), event)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "enr-1:APPROVED", queue.jobs[0].ID)
	assert.Equal(t, EventEnrollmentTransitioned, queue.jobs[0].Type)

	publisher := &stubPublisher{}
	require.NoError(t, EventJobHandler(publisher)(context.Background(), queue.jobs[0]))
	assert.Equal(t, []models.EnrollmentEvent{event}, publisher.events)
}

func TestQueueEventSinkDropsWhenFull(t *testing.T) {
	queue := &stubQueue{err: jobs.ErrQueueFull}
	sink := NewQueueEventSink(queue, nil)

	assert.NotPanics(t, func() {
		sink.Publish(context.Background(), models.EnrollmentEvent{EnrollmentID: "enr-1"})
	})
	assert.Empty(t, queue.jobs)
}

func TestEventJobHandlerRejectsUnknownPayload(t *testing.T) {
	err := EventJobHandler(&stubPublisher{})(context.Background(), jobs.Job{ID: "x", Payload: "text"})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, jobs.ErrQueueFull))
}
