package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin          UserRole = "ADMIN"
	RoleSecretary      UserRole = "SECRETARY"
	RoleRepresentative UserRole = "REPRESENTATIVE"
	RoleTeacher        UserRole = "TEACHER"
)

// IsStaff reports whether the role belongs to institution staff allowed to review enrollments.
func (r UserRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleSecretary
}

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID   string   `json:"id"`
	Role UserRole `json:"role"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Listing page defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage clamps a requested page and page size to the listing defaults.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return page, size
}
