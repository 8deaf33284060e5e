package service

import (
	"github.com/noah-isme/matricula-api/internal/models"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
)

// Operation names an action checked by Authorize.
type Operation string

const (
	OpViewEnrollment   Operation = "enrollment:view"
	OpListEnrollments  Operation = "enrollment:list"
	OpCreateEnrollment Operation = "enrollment:create"
	OpEditEnrollment   Operation = "enrollment:edit"
	OpResubmit         Operation = "enrollment:resubmit"
	OpBeginReview      Operation = "enrollment:begin_review"
	OpApprove          Operation = "enrollment:approve"
	OpReject           Operation = "enrollment:reject"
	OpAnnul            Operation = "enrollment:annul"
	OpViewDocuments    Operation = "document:view"
	OpUploadDocument   Operation = "document:upload"
	OpDeleteDocument   Operation = "document:delete"
	OpReviewDocument   Operation = "document:review"
	OpViewCapacity     Operation = "section:capacity"
	OpViewRoster       Operation = "section:roster"
	OpViewReports      Operation = "report:view"
	OpManageCatalog    Operation = "catalog:write"
)

// requesterOps may be performed by the requester of the enrollment.
var requesterOps = map[Operation]bool{
	OpViewEnrollment:   true,
	OpListEnrollments:  true,
	OpCreateEnrollment: true,
	OpEditEnrollment:   true,
	OpResubmit:         true,
	OpViewDocuments:    true,
	OpUploadDocument:   true,
	OpDeleteDocument:   true,
	OpViewCapacity:     true,
}

var teacherOps = map[Operation]bool{
	OpViewCapacity: true,
	OpViewRoster:   true,
}

// Authorize decides whether actor may perform op. enrollment is the target when the
// operation concerns a single enrollment and nil otherwise; for requester operations a
// non-nil enrollment must belong to the actor.
func Authorize(actor models.Actor, op Operation, enrollment *models.Enrollment) error {
	if actor.ID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}

	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleSecretary:
		if op == OpAnnul || op == OpManageCatalog {
			return appErrors.Clone(appErrors.ErrForbidden, "operation reserved to administrators")
		}
		return nil
	case models.RoleRepresentative:
		if !requesterOps[op] {
			return appErrors.Clone(appErrors.ErrForbidden, "operation reserved to staff")
		}
		if enrollment != nil && enrollment.RequesterID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another requester")
		}
		return nil
	case models.RoleTeacher:
		if teacherOps[op] {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
}
