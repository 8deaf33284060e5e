package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/matricula-api/internal/models"
)

func requirementFixture() []models.DocumentRequirement {
	active := models.AuditFields{IsActive: true}
	return []models.DocumentRequirement{
		{ID: "r-id", Code: "CEDULA", Name: "Cedula", DisplayOrder: 1, Mandatory: true, AppliesFirstTime: true, AppliesRenewal: true, AppliesTransfer: true, AuditFields: active},
		{ID: "r-conadis", Code: "CONADIS", Name: "Carnet CONADIS", DisplayOrder: 2, Mandatory: true, AppliesFirstTime: true, AppliesRenewal: true, AppliesTransfer: true, DisabilityOnly: true, AuditFields: active},
		{ID: "r-pase", Code: "PASE", Name: "Pase", DisplayOrder: 3, Mandatory: true, AppliesTransfer: true, AuditFields: active},
		{ID: "r-photo", Code: "FOTO", Name: "Foto", DisplayOrder: 0, AppliesFirstTime: true, AppliesRenewal: true, AppliesTransfer: true, AuditFields: active},
		{ID: "r-old", Code: "OLD", Name: "Retired", DisplayOrder: 4, Mandatory: true, AppliesFirstTime: true},
	}
}

func requirementIDs(matrix models.DocumentMatrix) []string {
	ids := make([]string, 0, len(matrix.Rows))
	for _, row := range matrix.Rows {
		ids = append(ids, row.Requirement.ID)
	}
	return ids
}

func TestRequirementAppliesDisabilityOnly(t *testing.T) {
	conadis := requirementFixture()[1]

	assert.False(t, RequirementApplies(conadis, models.EnrollmentTypeNew, false))
	assert.True(t, RequirementApplies(conadis, models.EnrollmentTypeNew, true))
}

func TestBuildDocumentMatrixApplicability(t *testing.T) {
	enrollment := models.Enrollment{ID: "enr-1", Type: models.EnrollmentTypeNew}

	without := BuildDocumentMatrix(enrollment, false, requirementFixture(), nil)
	assert.Equal(t, []string{"r-photo", "r-id"}, requirementIDs(without))

	with := BuildDocumentMatrix(enrollment, true, requirementFixture(), nil)
	assert.Equal(t, []string{"r-photo", "r-id", "r-conadis"}, requirementIDs(with))

	transfer := BuildDocumentMatrix(models.Enrollment{ID: "enr-2", Type: models.EnrollmentTypeIncomingTransfer}, false, requirementFixture(), nil)
	assert.Equal(t, []string{"r-photo", "r-id", "r-pase"}, requirementIDs(transfer))
}

func TestBuildDocumentMatrixSummary(t *testing.T) {
	enrollment := models.Enrollment{ID: "enr-1", Type: models.EnrollmentTypeNew}
	submitted := []models.SubmittedDocument{
		{ID: "d-1", RequirementID: "r-id", Status: models.DocumentStatusVerified},
		{ID: "d-2", RequirementID: "r-conadis", Status: models.DocumentStatusRejected, Observation: "illegible"},
	}

	matrix := BuildDocumentMatrix(enrollment, true, requirementFixture(), submitted)

	require.Len(t, matrix.Rows, 3)
	assert.Equal(t, models.DocumentStatusMissing, matrix.Rows[0].Status)
	assert.Nil(t, matrix.Rows[0].Document)
	assert.Equal(t, "illegible", matrix.Rows[2].Document.Observation)
	assert.Equal(t, models.DocumentMatrixSummary{Total: 3, Verified: 1, Rejected: 1, Missing: 1}, matrix.Summary)
	assert.False(t, matrix.Summary.Complete)

	submitted[1].Status = models.DocumentStatusVerified
	matrix = BuildDocumentMatrix(enrollment, true, requirementFixture(), submitted)
	assert.True(t, matrix.Summary.Complete, "optional photo does not block completeness")
}
