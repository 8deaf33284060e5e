package models

// SubLevel groups grade levels into education stages.
type SubLevel string

const (
	SubLevelPreparatory     SubLevel = "PREPARATORIA"
	SubLevelBasicElementary SubLevel = "BASICA_ELEMENTAL"
	SubLevelBasicMiddle     SubLevel = "BASICA_MEDIA"
	SubLevelBasicUpper      SubLevel = "BASICA_SUPERIOR"
	SubLevelBaccalaureate   SubLevel = "BGU"
)

// GradeLevel is an ordered academic grade.
type GradeLevel struct {
	ID           string   `db:"id" json:"id"`
	Name         string   `db:"name" json:"name"`
	DisplayOrder int      `db:"display_order" json:"display_order"`
	SubLevel     SubLevel `db:"sub_level" json:"sub_level"`
	AuditFields
}
