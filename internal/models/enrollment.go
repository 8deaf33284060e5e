package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// EnrollmentStatus represents the lifecycle of an enrollment request.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending     EnrollmentStatus = "PENDING"
	EnrollmentStatusUnderReview EnrollmentStatus = "UNDER_REVIEW"
	EnrollmentStatusApproved    EnrollmentStatus = "APPROVED"
	EnrollmentStatusRejected    EnrollmentStatus = "REJECTED"
	EnrollmentStatusAnnulled    EnrollmentStatus = "ANNULLED"
)

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusUnderReview, EnrollmentStatusApproved,
		EnrollmentStatusRejected, EnrollmentStatusAnnulled:
		return true
	}
	return false
}

// EnrollmentType distinguishes first-time, renewal and transfer requests.
type EnrollmentType string

const (
	EnrollmentTypeNew              EnrollmentType = "NEW"
	EnrollmentTypeRenewal          EnrollmentType = "RENEWAL"
	EnrollmentTypeIncomingTransfer EnrollmentType = "INCOMING_TRANSFER"
)

const codeTokenLength = 8

// Enrollment binds one student to one section for one period.
type Enrollment struct {
	ID                string           `db:"id" json:"id"`
	Code              string           `db:"code" json:"code"`
	StudentID         string           `db:"student_id" json:"student_id"`
	SectionID         string           `db:"section_id" json:"section_id"`
	PeriodID          string           `db:"period_id" json:"period_id"`
	RequesterID       string           `db:"requester_id" json:"requester_id"`
	Type              EnrollmentType   `db:"type" json:"type"`
	Status            EnrollmentStatus `db:"status" json:"status"`
	RequestedAt       time.Time        `db:"requested_at" json:"requested_at"`
	ReviewStartedAt   *time.Time       `db:"review_started_at" json:"review_started_at,omitempty"`
	ResolvedAt        *time.Time       `db:"resolved_at" json:"resolved_at,omitempty"`
	AnnulledAt        *time.Time       `db:"annulled_at" json:"annulled_at,omitempty"`
	ReviewedBy        *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	AnnulledBy        *string          `db:"annulled_by" json:"annulled_by,omitempty"`
	Notes             string           `db:"notes" json:"notes"`
	RejectionReason   *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	AnnulmentReason   *string          `db:"annulment_reason" json:"annulment_reason,omitempty"`
	PriorEnrollmentID *string          `db:"prior_enrollment_id" json:"prior_enrollment_id,omitempty"`
	RejectionCount    int              `db:"rejection_count" json:"rejection_count"`
	Version           int              `db:"version" json:"version"`
	AuditFields
}

// IsEditable reports whether the requester may still change the request.
func (e Enrollment) IsEditable() bool {
	return e.Status == EnrollmentStatusPending || e.Status == EnrollmentStatusRejected
}

// IsFinalized reports whether the enrollment reached a final state.
func (e Enrollment) IsFinalized() bool {
	return e.Status == EnrollmentStatusApproved || e.Status == EnrollmentStatusAnnulled
}

// DaysInProcess counts whole days from the request to its resolution, or to now while unresolved.
func (e Enrollment) DaysInProcess(now time.Time) int {
	if e.RequestedAt.IsZero() {
		return 0
	}
	end := now
	if e.ResolvedAt != nil {
		end = *e.ResolvedAt
	}
	days := int(end.Sub(e.RequestedAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// StatusSummary returns the compact status view of the enrollment.
func (e Enrollment) StatusSummary(now time.Time) EnrollmentStatusSummary {
	return EnrollmentStatusSummary{
		ID:            e.ID,
		Code:          e.Code,
		Status:        e.Status,
		IsEditable:    e.IsEditable(),
		IsFinalized:   e.IsFinalized(),
		DaysInProcess: e.DaysInProcess(now),
	}
}

// NewEnrollmentCode returns a human readable code such as MAT-7F3K2QZA.
func NewEnrollmentCode(prefix string) string {
	if prefix == "" {
		prefix = "MAT"
	}
	id := uuid.New()
	token := strings.ToUpper(base58.Encode(id[:]))
	if len(token) > codeTokenLength {
		token = token[:codeTokenLength]
	}
	return prefix + "-" + token
}

// EnrollmentStatusSummary is the compact status view exposed to requesters.
type EnrollmentStatusSummary struct {
	ID            string           `json:"id"`
	Code          string           `json:"code"`
	Status        EnrollmentStatus `json:"status"`
	IsEditable    bool             `json:"is_editable"`
	IsFinalized   bool             `json:"is_finalized"`
	DaysInProcess int              `json:"days_in_process"`
}

// EnrollmentDetail enriches Enrollment with student and section info.
type EnrollmentDetail struct {
	Enrollment
	StudentName           string `db:"student_name" json:"student_name"`
	StudentIdentification string `db:"student_identification" json:"student_identification"`
	StudentHasDisability  bool   `db:"student_has_disability" json:"student_has_disability"`
	SectionLabel          string `db:"section_label" json:"section_label"`
	GradeLevelName        string `db:"grade_level_name" json:"grade_level_name"`
	PeriodName            string `db:"period_name" json:"period_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	PeriodID    string
	SectionID   string
	StudentID   string
	RequesterID string
	Status      EnrollmentStatus
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// EnrollmentHistoryEntry is the immutable record of one status transition.
type EnrollmentHistoryEntry struct {
	ID           string           `db:"id" json:"id"`
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	FromStatus   EnrollmentStatus `db:"from_status" json:"from_status"`
	ToStatus     EnrollmentStatus `db:"to_status" json:"to_status"`
	ActorID      *string          `db:"actor_id" json:"actor_id,omitempty"`
	Comment      string           `db:"comment" json:"comment"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// EnrollmentStatusCount is the number of enrollments in one status for a period.
type EnrollmentStatusCount struct {
	Status EnrollmentStatus `db:"status" json:"status"`
	Total  int              `db:"total" json:"total"`
}

// RosterEntry is one approved student in a section roster.
type RosterEntry struct {
	Code                  string    `db:"code" json:"code"`
	StudentName           string    `db:"student_name" json:"student_name"`
	StudentIdentification string    `db:"student_identification" json:"student_identification"`
	Type                  string    `db:"type" json:"type"`
	ResolvedAt            time.Time `db:"resolved_at" json:"resolved_at"`
}

// EnrollmentEvent describes a committed transition for downstream consumers.
type EnrollmentEvent struct {
	Type         string           `json:"type"`
	EnrollmentID string           `json:"enrollment_id"`
	Code         string           `json:"code"`
	StudentID    string           `json:"student_id"`
	RequesterID  string           `json:"requester_id"`
	FromStatus   EnrollmentStatus `json:"from_status"`
	ToStatus     EnrollmentStatus `json:"to_status"`
	ActorID      string           `json:"actor_id"`
	Comment      string           `json:"comment,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}
