package models

import "time"

// Regime is the school calendar region a period follows.
type Regime string

const (
	RegimeSierra Regime = "SIERRA"
	RegimeCosta  Regime = "COSTA"
)

// Period is an academic year window. Exactly one period is current at a time.
type Period struct {
	ID                  string     `db:"id" json:"id"`
	Name                string     `db:"name" json:"name"`
	StartDate           time.Time  `db:"start_date" json:"start_date"`
	EndDate             time.Time  `db:"end_date" json:"end_date"`
	EnrollmentStart     time.Time  `db:"enrollment_start" json:"enrollment_start"`
	EnrollmentEnd       time.Time  `db:"enrollment_end" json:"enrollment_end"`
	AllowsExtraordinary bool       `db:"allows_extraordinary" json:"allows_extraordinary"`
	ExtraordinaryStart  *time.Time `db:"extraordinary_start" json:"extraordinary_start,omitempty"`
	ExtraordinaryEnd    *time.Time `db:"extraordinary_end" json:"extraordinary_end,omitempty"`
	IsCurrent           bool       `db:"is_current" json:"is_current"`
	Regime              Regime     `db:"regime" json:"regime"`
	Notes               string     `db:"notes" json:"notes"`
	AuditFields
}

// EnrollmentOpen reports whether day falls inside the ordinary enrollment window (inclusive dates).
func (p Period) EnrollmentOpen(day time.Time) bool {
	return withinDays(day, p.EnrollmentStart, p.EnrollmentEnd)
}

// ExtraordinaryOpen reports whether day falls inside the extraordinary window.
func (p Period) ExtraordinaryOpen(day time.Time) bool {
	if !p.AllowsExtraordinary || p.ExtraordinaryStart == nil || p.ExtraordinaryEnd == nil {
		return false
	}
	return withinDays(day, *p.ExtraordinaryStart, *p.ExtraordinaryEnd)
}

// CanEnroll reports whether either enrollment window is open.
func (p Period) CanEnroll(day time.Time) bool {
	return p.EnrollmentOpen(day) || p.ExtraordinaryOpen(day)
}

func withinDays(day, start, end time.Time) bool {
	if start.IsZero() || end.IsZero() {
		return false
	}
	d := truncateDay(day)
	return !d.Before(truncateDay(start)) && !d.After(truncateDay(end))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PeriodWindow is the enrollment window summary returned to clients.
type PeriodWindow struct {
	EnrollmentOpen    bool `json:"enrollment_open"`
	ExtraordinaryOpen bool `json:"extraordinary_open"`
	CanEnroll         bool `json:"can_enroll"`
}

// PeriodWithWindow pairs a period with its computed window state.
type PeriodWithWindow struct {
	Period
	Window PeriodWindow `json:"window"`
}
