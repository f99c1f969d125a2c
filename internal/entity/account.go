package entity

import (
	"time"
)

// Account is the application-level profile of a worker or admin. Its ID equals the
// identity ID it belongs to.
type Account struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	EmployeeCode string `json:"employee_code"`
	// Roles is nil when the stored column is NULL (legacy rows) and non-nil, possibly
	// empty, when present.
	Roles     []string  `json:"roles"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRoles reports whether the roles column is present at all.
func (a *Account) HasRoles() bool {
	return a != nil && a.Roles != nil
}
