package models

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeCapacity(t *testing.T) {
	cases := []struct {
		name      string
		capacity  int
		approved  int
		available int
		pct       float64
		full      bool
	}{
		{"empty", 35, 0, 35, 0, false},
		{"partial", 35, 12, 23, 34.3, false},
		{"exactly full", 30, 30, 0, 100, true},
		{"over capacity never negative", 30, 33, 0, 110, true},
		{"zero capacity", 0, 4, 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeCapacity(tc.capacity, tc.approved)
			assert.Equal(t, tc.available, got.Available)
			assert.InDelta(t, tc.pct, got.OccupancyPct, 0.001)
			assert.Equal(t, tc.full, got.IsFull)
			assert.GreaterOrEqual(t, got.Available, 0)
		})
	}
}

func TestComputeCapacityAvailableNeverNegative(t *testing.T) {
	for capacity := 0; capacity <= 60; capacity += 5 {
		for approved := 0; approved <= 80; approved++ {
			got := ComputeCapacity(capacity, approved)
			expected := capacity - approved
			if expected < 0 {
				expected = 0
			}
			assert.Equal(t, expected, got.Available)
		}
	}
}

func TestNewEnrollmentCode(t *testing.T) {
	pattern := regexp.MustCompile(`^MAT-[1-9A-Z]{8}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code := NewEnrollmentCode("")
		assert.Regexp(t, pattern, code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
	assert.Regexp(t, `^INS-`, NewEnrollmentCode("INS"))
}

func TestEnrollmentDerivedProperties(t *testing.T) {
	requested := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := Enrollment{Status: EnrollmentStatusPending, RequestedAt: requested}

	assert.True(t, e.IsEditable())
	assert.False(t, e.IsFinalized())
	assert.Equal(t, 4, e.DaysInProcess(requested.Add(4*24*time.Hour+time.Hour)))

	resolved := requested.Add(2 * 24 * time.Hour)
	e.Status = EnrollmentStatusApproved
	e.ResolvedAt = &resolved
	assert.False(t, e.IsEditable())
	assert.True(t, e.IsFinalized())
	assert.Equal(t, 2, e.DaysInProcess(requested.Add(30*24*time.Hour)))

	e.Status = EnrollmentStatusRejected
	assert.True(t, e.IsEditable())
	e.Status = EnrollmentStatusAnnulled
	assert.True(t, e.IsFinalized())
}

func TestPeriodWindows(t *testing.T) {
	extraStart := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	extraEnd := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	p := Period{
		EnrollmentStart:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		EnrollmentEnd:       time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		AllowsExtraordinary: true,
		ExtraordinaryStart:  &extraStart,
		ExtraordinaryEnd:    &extraEnd,
	}

	assert.True(t, p.EnrollmentOpen(time.Date(2026, 8, 20, 18, 30, 0, 0, time.UTC)))
	assert.False(t, p.EnrollmentOpen(time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)))
	assert.True(t, p.ExtraordinaryOpen(time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, p.CanEnroll(time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.CanEnroll(time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)))

	p.AllowsExtraordinary = false
	assert.False(t, p.ExtraordinaryOpen(time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)))
}

func TestRequirementExtensionsAndSize(t *testing.T) {
	req := DocumentRequirement{AllowedExtensions: " PDF, .jpg ,png"}
	assert.Equal(t, []string{"pdf", "jpg", "png"}, req.Extensions())
	assert.True(t, req.AllowsExtension("Cedula.PDF"))
	assert.True(t, req.AllowsExtension("foto.JpG"))
	assert.False(t, req.AllowsExtension("notes.docx"))
	assert.False(t, req.AllowsExtension("noext"))
	assert.EqualValues(t, 10*1024*1024, req.MaxSizeBytes())

	req = DocumentRequirement{MaxSizeMB: 2}
	assert.Equal(t, []string{"pdf", "jpg", "jpeg", "png"}, req.Extensions())
	assert.EqualValues(t, 2*1024*1024, req.MaxSizeBytes())
}
