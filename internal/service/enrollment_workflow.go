package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/matricula-api/internal/models"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
)

// ResubmitComment is the history comment recorded when a rejected request is sent back.
const ResubmitComment = "requester resubmitted the request with corrections"

// transitionGraph lists the statuses reachable from each status in one step.
var transitionGraph = map[models.EnrollmentStatus][]models.EnrollmentStatus{
	models.EnrollmentStatusPending:     {models.EnrollmentStatusUnderReview, models.EnrollmentStatusRejected},
	models.EnrollmentStatusUnderReview: {models.EnrollmentStatusApproved, models.EnrollmentStatusRejected},
	models.EnrollmentStatusApproved:    {models.EnrollmentStatusAnnulled},
	models.EnrollmentStatusRejected:    {models.EnrollmentStatusPending},
}

// CanTransition reports whether to is adjacent to from in the lifecycle graph.
func CanTransition(from, to models.EnrollmentStatus) bool {
	for _, next := range transitionGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

func invalidState(action string, status models.EnrollmentStatus) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot %s an enrollment in status %s", action, status))
}

func historyEntry(from, to models.EnrollmentStatus, actorID, comment string, now time.Time) *models.EnrollmentHistoryEntry {
	entry := &models.EnrollmentHistoryEntry{FromStatus: from, ToStatus: to, Comment: comment, CreatedAt: now}
	if actorID != "" {
		id := actorID
		entry.ActorID = &id
	}
	return entry
}

func beginReview(e *models.Enrollment, actorID string, now time.Time) (*models.EnrollmentHistoryEntry, error) {
	if e.Status != models.EnrollmentStatusPending {
		return nil, invalidState("begin review of", e.Status)
	}
	from := e.Status
	e.Status = models.EnrollmentStatusUnderReview
	e.ReviewedBy = stringPtr(actorID)
	e.ReviewStartedAt = timePtr(now)
	return historyEntry(from, e.Status, actorID, "", now), nil
}

func approve(e *models.Enrollment, actorID, note string, now time.Time) (*models.EnrollmentHistoryEntry, error) {
	if e.Status != models.EnrollmentStatusUnderReview {
		return nil, invalidState("approve", e.Status)
	}
	from := e.Status
	e.Status = models.EnrollmentStatusApproved
	e.ResolvedAt = timePtr(now)
	e.ReviewedBy = stringPtr(actorID)
	note = strings.TrimSpace(note)
	if note != "" {
		e.Notes = note
	}
	return historyEntry(from, e.Status, actorID, note, now), nil
}

func reject(e *models.Enrollment, actorID, reason string, now time.Time) (*models.EnrollmentHistoryEntry, error) {
	if e.Status != models.EnrollmentStatusPending && e.Status != models.EnrollmentStatusUnderReview {
		return nil, invalidState("reject", e.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a rejection reason is required")
	}
	from := e.Status
	e.Status = models.EnrollmentStatusRejected
	e.ResolvedAt = timePtr(now)
	e.ReviewedBy = stringPtr(actorID)
	e.RejectionReason = stringPtr(reason)
	e.RejectionCount++
	return historyEntry(from, e.Status, actorID, reason, now), nil
}

func annul(e *models.Enrollment, actorID, reason string, now time.Time) (*models.EnrollmentHistoryEntry, error) {
	if e.Status != models.EnrollmentStatusApproved {
		return nil, invalidState("annul", e.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an annulment reason is required")
	}
	from := e.Status
	e.Status = models.EnrollmentStatusAnnulled
	e.AnnulledAt = timePtr(now)
	e.AnnulledBy = stringPtr(actorID)
	e.AnnulmentReason = stringPtr(reason)
	return historyEntry(from, e.Status, actorID, reason, now), nil
}

func resubmit(e *models.Enrollment, actorID string, now time.Time) (*models.EnrollmentHistoryEntry, error) {
	if e.Status != models.EnrollmentStatusRejected {
		return nil, invalidState("resubmit", e.Status)
	}
	from := e.Status
	e.Status = models.EnrollmentStatusPending
	e.RejectionReason = nil
	e.ResolvedAt = nil
	return historyEntry(from, e.Status, actorID, ResubmitComment, now), nil
}

// ReplayHistory walks the entries in chronological order and returns the status sequence
// they describe, starting at PENDING. It fails when an entry does not continue from the
// previous status or skips an edge of the lifecycle graph.
func ReplayHistory(entries []models.EnrollmentHistoryEntry) ([]models.EnrollmentStatus, error) {
	sequence := []models.EnrollmentStatus{models.EnrollmentStatusPending}
	for i, entry := range entries {
		current := sequence[len(sequence)-1]
		if entry.FromStatus != current {
			return sequence, fmt.Errorf("entry %d starts at %s but enrollment was %s", i, entry.FromStatus, current)
		}
		if !CanTransition(entry.FromStatus, entry.ToStatus) {
			return sequence, fmt.Errorf("entry %d moves %s to %s which is not allowed", i, entry.FromStatus, entry.ToStatus)
		}
		sequence = append(sequence, entry.ToStatus)
	}
	return sequence, nil
}

func stringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
