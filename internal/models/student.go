package models

// Student is the learner an enrollment is requested for.
type Student struct {
	ID                   string  `db:"id" json:"id"`
	IdentificationNumber string  `db:"identification_number" json:"identification_number"`
	FullName             string  `db:"full_name" json:"full_name"`
	HasDisability        bool    `db:"has_disability" json:"has_disability"`
	RepresentativeID     *string `db:"representative_id" json:"representative_id,omitempty"`
	AuditFields
}
