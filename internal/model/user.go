package model

import "time"

// User roles.  CUSTOMER places orders; STAFF reviews, confirms and
// handles physical allocation/handover.
const (
	RoleCustomer = "CUSTOMER"
	RoleStaff    = "STAFF"
)

// User represents an account row in the `users` table.  Handlers define
// their own response types; this struct is the repository-layer view.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	FullName     string    // users.full_name
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
}
