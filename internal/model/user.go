package model

import "time"

// User roles.  Customers place orders; admins manage the catalog and
// perform administrative stock adjustments.
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// User mirrors the `users` table of the user service.  PasswordHash holds a
// bcrypt digest; the plaintext never leaves the registration handler.
type User struct {
	ID           uint64
	Email        string
	FullName     string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
