package models

import "math"

// Shift is the schedule track a section attends.
type Shift string

const (
	ShiftMorning   Shift = "MATUTINA"
	ShiftAfternoon Shift = "VESPERTINA"
	ShiftEvening   Shift = "NOCTURNA"
)

// Section capacity bounds.
const (
	MinSectionCapacity     = 1
	MaxSectionCapacity     = 60
	DefaultSectionCapacity = 35
)

// Section is a grade level instance within a period.
type Section struct {
	ID           string `db:"id" json:"id"`
	PeriodID     string `db:"period_id" json:"period_id"`
	GradeLevelID string `db:"grade_level_id" json:"grade_level_id"`
	Label        string `db:"label" json:"label"`
	Capacity     int    `db:"capacity" json:"capacity"`
	Shift        Shift  `db:"shift" json:"shift"`
	AuditFields
}

// SectionDetail enriches a section with its grade level, period and approved count.
type SectionDetail struct {
	Section
	GradeLevelName string `db:"grade_level_name" json:"grade_level_name"`
	PeriodName     string `db:"period_name" json:"period_name"`
	ApprovedCount  int    `db:"approved_count" json:"approved_count"`
}

// SectionFilter narrows section listings.
type SectionFilter struct {
	PeriodID     string
	GradeLevelID string
}

// SectionCapacity is the derived seat accounting for one section.
type SectionCapacity struct {
	SectionID     string  `json:"section_id"`
	Capacity      int     `json:"capacity"`
	ApprovedCount int     `json:"approved_count"`
	Available     int     `json:"available"`
	OccupancyPct  float64 `json:"occupancy_pct"`
	IsFull        bool    `json:"is_full"`
}

// ComputeCapacity derives seat availability from the configured capacity and
// the number of approved enrollments. Available seats never go below zero.
func ComputeCapacity(capacity, approved int) SectionCapacity {
	available := capacity - approved
	if available < 0 {
		available = 0
	}

	var pct float64
	if capacity > 0 {
		pct = math.Round(1000*float64(approved)/float64(capacity)) / 10
	}

	return SectionCapacity{
		Capacity:      capacity,
		ApprovedCount: approved,
		Available:     available,
		OccupancyPct:  pct,
		IsFull:        available <= 0,
	}
}

// SectionAvailability pairs a section with its derived capacity.
type SectionAvailability struct {
	SectionDetail
	Seats SectionCapacity `json:"seats"`
}
