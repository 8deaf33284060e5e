package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Requirement defaults.
const (
	DefaultAllowedExtensions = "pdf,jpg,jpeg,png"
	DefaultMaxSizeMB         = 10
)

// DocumentRequirement is a catalog entry describing a document type and when it applies.
type DocumentRequirement struct {
	ID                string `db:"id" json:"id"`
	Code              string `db:"code" json:"code"`
	Name              string `db:"name" json:"name"`
	Description       string `db:"description" json:"description"`
	DisplayOrder      int    `db:"display_order" json:"display_order"`
	Mandatory         bool   `db:"mandatory" json:"mandatory"`
	AppliesFirstTime  bool   `db:"applies_first_time" json:"applies_first_time"`
	AppliesRenewal    bool   `db:"applies_renewal" json:"applies_renewal"`
	AppliesTransfer   bool   `db:"applies_transfer" json:"applies_transfer"`
	DisabilityOnly    bool   `db:"disability_only" json:"disability_only"`
	AllowedExtensions string `db:"allowed_extensions" json:"allowed_extensions"`
	MaxSizeMB         int    `db:"max_size_mb" json:"max_size_mb"`
	AuditFields
}

// Extensions returns the normalised list of allowed extensions without dots.
func (r DocumentRequirement) Extensions() []string {
	raw := r.AllowedExtensions
	if strings.TrimSpace(raw) == "" {
		raw = DefaultAllowedExtensions
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "."))
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

// AllowsExtension reports whether filename carries an allowed extension (case-insensitive).
func (r DocumentRequirement) AllowsExtension(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range r.Extensions() {
		if allowed == ext {
			return true
		}
	}
	return false
}

// MaxSizeBytes returns the upload limit in bytes.
func (r DocumentRequirement) MaxSizeBytes() int64 {
	mb := r.MaxSizeMB
	if mb <= 0 {
		mb = DefaultMaxSizeMB
	}
	return int64(mb) * 1024 * 1024
}

// DocumentStatus tracks the review state of a submitted document.
type DocumentStatus string

const (
	DocumentStatusMissing  DocumentStatus = "MISSING"
	DocumentStatusPending  DocumentStatus = "PENDING"
	DocumentStatusVerified DocumentStatus = "VERIFIED"
	DocumentStatusRejected DocumentStatus = "REJECTED"
)

// SubmittedDocument is one uploaded file for an (enrollment, requirement) pair.
type SubmittedDocument struct {
	ID               string         `db:"id" json:"id"`
	EnrollmentID     string         `db:"enrollment_id" json:"enrollment_id"`
	RequirementID    string         `db:"requirement_id" json:"requirement_id"`
	FilePath         string         `db:"file_path" json:"-"`
	OriginalFilename string         `db:"original_filename" json:"original_filename"`
	SizeBytes        int64          `db:"size_bytes" json:"size_bytes"`
	MimeType         string         `db:"mime_type" json:"mime_type"`
	Status           DocumentStatus `db:"status" json:"status"`
	Observation      string         `db:"observation" json:"observation"`
	VerifiedBy       *string        `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt       *time.Time     `db:"verified_at" json:"verified_at,omitempty"`
	UploadedBy       string         `db:"uploaded_by" json:"uploaded_by"`
	AuditFields
}

// Reviewable reports whether s is a status a stored document can hold.
func (s DocumentStatus) Reviewable() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusVerified, DocumentStatusRejected:
		return true
	}
	return false
}

// DocumentFilter narrows the staff review queue. An empty Status matches every status.
type DocumentFilter struct {
	Status   DocumentStatus
	Page     int
	PageSize int
}

// DocumentQueueItem is a submitted document with the enrollment and requirement it belongs to.
type DocumentQueueItem struct {
	SubmittedDocument
	EnrollmentCode  string `db:"enrollment_code" json:"enrollment_code"`
	StudentName     string `db:"student_name" json:"student_name"`
	RequirementCode string `db:"requirement_code" json:"requirement_code"`
	RequirementName string `db:"requirement_name" json:"requirement_name"`
}

// DocumentStatusCount is the number of stored documents in one status.
type DocumentStatusCount struct {
	Status DocumentStatus `db:"status" json:"status"`
	Total  int            `db:"total" json:"total"`
}

// DocumentStatusCounts totals stored documents across every enrollment.
type DocumentStatusCounts struct {
	Pending  int `json:"pending"`
	Verified int `json:"verified"`
	Rejected int `json:"rejected"`
}

// DocumentQueue is one page of the staff review queue.
type DocumentQueue struct {
	Items      []DocumentQueueItem
	Pagination Pagination
	Counts     DocumentStatusCounts
}

// DocumentMatrixRow is the completeness status of one applicable requirement.
type DocumentMatrixRow struct {
	Requirement DocumentRequirement `json:"requirement"`
	Status      DocumentStatus      `json:"status"`
	Document    *SubmittedDocument  `json:"document,omitempty"`
}

// DocumentMatrixSummary aggregates the matrix rows.
type DocumentMatrixSummary struct {
	Total            int  `json:"total"`
	Verified         int  `json:"verified"`
	Pending          int  `json:"pending"`
	Rejected         int  `json:"rejected"`
	Missing          int  `json:"missing"`
	MandatoryMissing int  `json:"mandatory_missing"`
	Complete         bool `json:"complete"`
}

// DocumentMatrix is the required-vs-submitted view for one enrollment.
type DocumentMatrix struct {
	EnrollmentID string                `json:"enrollment_id"`
	Rows         []DocumentMatrixRow   `json:"rows"`
	Summary      DocumentMatrixSummary `json:"summary"`
}

// DocumentDownload is a signed, time limited link to a stored document.
type DocumentDownload struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
