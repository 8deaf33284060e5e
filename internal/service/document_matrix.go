package service

import (
	"sort"

	"github.com/noah-isme/matricula-api/internal/models"
)

// RequirementApplies reports whether requirement must be presented for an enrollment of
// type enrollmentType whose student has the given disability flag.
func RequirementApplies(requirement models.DocumentRequirement, enrollmentType models.EnrollmentType, hasDisability bool) bool {
	switch enrollmentType {
	case models.EnrollmentTypeNew:
		if !requirement.AppliesFirstTime {
			return false
		}
	case models.EnrollmentTypeRenewal:
		if !requirement.AppliesRenewal {
			return false
		}
	case models.EnrollmentTypeIncomingTransfer:
		if !requirement.AppliesTransfer {
			return false
		}
	}
	if requirement.DisabilityOnly && !hasDisability {
		return false
	}
	return true
}

// BuildDocumentMatrix joins the applicable part of catalog with the submitted documents.
// Rows follow the catalog display order; a requirement without a document is MISSING.
func BuildDocumentMatrix(enrollment models.Enrollment, hasDisability bool, catalog []models.DocumentRequirement, submitted []models.SubmittedDocument) models.DocumentMatrix {
	ordered := make([]models.DocumentRequirement, len(catalog))
	copy(ordered, catalog)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].DisplayOrder != ordered[j].DisplayOrder {
			return ordered[i].DisplayOrder < ordered[j].DisplayOrder
		}
		return ordered[i].Name < ordered[j].Name
	})

	byRequirement := make(map[string]models.SubmittedDocument, len(submitted))
	for _, doc := range submitted {
		byRequirement[doc.RequirementID] = doc
	}

	matrix := models.DocumentMatrix{EnrollmentID: enrollment.ID, Rows: []models.DocumentMatrixRow{}}
	mandatoryVerified := true
	for _, requirement := range ordered {
		if !requirement.IsActive || !RequirementApplies(requirement, enrollment.Type, hasDisability) {
			continue
		}
		row := models.DocumentMatrixRow{Requirement: requirement, Status: models.DocumentStatusMissing}
		if doc, ok := byRequirement[requirement.ID]; ok {
			doc := doc
			row.Document = &doc
			row.Status = doc.Status
		}

		matrix.Summary.Total++
		switch row.Status {
		case models.DocumentStatusVerified:
			matrix.Summary.Verified++
		case models.DocumentStatusPending:
			matrix.Summary.Pending++
		case models.DocumentStatusRejected:
			matrix.Summary.Rejected++
		default:
			matrix.Summary.Missing++
			if requirement.Mandatory {
				matrix.Summary.MandatoryMissing++
			}
		}
		if requirement.Mandatory && row.Status != models.DocumentStatusVerified {
			mandatoryVerified = false
		}
		matrix.Rows = append(matrix.Rows, row)
	}
	matrix.Summary.Complete = mandatoryVerified
	return matrix
}
