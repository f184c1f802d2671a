package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleStudent    UserRole = "STUDENT"
)

// User is the read-only view of an account that owns schedules and reservations.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      UserRole  `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// normalisePage clamps page and size the same way every repository does.
func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}

// NewPagination builds pagination metadata from a requested page and size.
func NewPagination(page, size, total int) *Pagination {
	page, size = normalisePage(page, size)
	return &Pagination{Page: page, PageSize: size, TotalCount: total}
}

// PageBounds returns the clamped LIMIT and OFFSET for a page request.
func PageBounds(page, size int) (limit, offset int) {
	page, size = normalisePage(page, size)
	return size, (page - 1) * size
}
