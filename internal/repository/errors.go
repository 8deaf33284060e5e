package repository

import "errors"

var (
	// ErrDuplicateEnrollmentCode signals a collision on the generated code.
	ErrDuplicateEnrollmentCode = errors.New("enrollment code already exists")
	// ErrApprovedEnrollmentExists signals that the approved-per-period index rejected a write.
	ErrApprovedEnrollmentExists = errors.New("student already has an approved enrollment in this period")
	// ErrStaleEnrollment signals that the row changed since it was read.
	ErrStaleEnrollment = errors.New("enrollment was modified concurrently")
	// ErrStaleDocument signals that a document left PENDING or got a new file since it was read.
	ErrStaleDocument = errors.New("document was modified concurrently")
	// ErrDocumentVerified is returned when an upload would replace a verified document.
	ErrDocumentVerified = errors.New("document is already verified")
	// ErrPeriodNotFound is returned when activating a period that does not exist or is inactive.
	ErrPeriodNotFound = errors.New("period not found")
	// ErrDuplicateSection signals a (period, grade level, label) collision.
	ErrDuplicateSection = errors.New("section already exists")
	// ErrDuplicateGradeLevelOrder signals a display order collision.
	ErrDuplicateGradeLevelOrder = errors.New("grade level display order already exists")
	// ErrDuplicateRequirementCode signals a requirement code collision.
	ErrDuplicateRequirementCode = errors.New("requirement code already exists")
)
