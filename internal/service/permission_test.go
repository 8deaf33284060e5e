package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/matricula-api/internal/models"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
)

func TestAuthorize(t *testing.T) {
	own := &models.Enrollment{RequesterID: "rep-1"}
	foreign := &models.Enrollment{RequesterID: "rep-9"}
	rep := models.Actor{ID: "rep-1", Role: models.RoleRepresentative}

	cases := []struct {
		name       string
		actor      models.Actor
		op         Operation
		enrollment *models.Enrollment
		code       string
	}{
		{"anonymous", models.Actor{Role: models.RoleAdmin}, OpViewCapacity, nil, appErrors.ErrUnauthorized.Code},
		{"admin annuls", models.Actor{ID: "a", Role: models.RoleAdmin}, OpAnnul, own, ""},
		{"secretary approves", models.Actor{ID: "s", Role: models.RoleSecretary}, OpApprove, foreign, ""},
		{"secretary cannot annul", models.Actor{ID: "s", Role: models.RoleSecretary}, OpAnnul, own, appErrors.ErrForbidden.Code},
		{"secretary cannot edit catalog", models.Actor{ID: "s", Role: models.RoleSecretary}, OpManageCatalog, nil, appErrors.ErrForbidden.Code},
		{"requester resubmits own", rep, OpResubmit, own, ""},
		{"requester resubmits foreign", rep, OpResubmit, foreign, appErrors.ErrForbidden.Code},
		{"requester cannot review", rep, OpBeginReview, own, appErrors.ErrForbidden.Code},
		{"requester cannot review documents", rep, OpReviewDocument, own, appErrors.ErrForbidden.Code},
		{"requester lists", rep, OpListEnrollments, nil, ""},
		{"teacher reads roster", models.Actor{ID: "t", Role: models.RoleTeacher}, OpViewRoster, nil, ""},
		{"teacher cannot view enrollment", models.Actor{ID: "t", Role: models.RoleTeacher}, OpViewEnrollment, own, appErrors.ErrForbidden.Code},
		{"unknown role", models.Actor{ID: "x", Role: "GUEST"}, OpViewCapacity, nil, appErrors.ErrForbidden.Code},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.actor, tc.op, tc.enrollment)
			if tc.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}
