package types

import "time"

// Role is the authorization level carried by a user and their tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Rank orders roles so that a higher rank satisfies every lower requirement.
// Unknown roles rank below user.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// Satisfies reports whether r meets the required role.
func (r Role) Satisfies(required Role) bool {
	return r.Valid() && r.Rank() >= required.Rank()
}

// User represents an account in the system.
// It contains identity, credentials, role, and audit metadata.
type User struct {
	// ID is the opaque unique identifier of the user, assigned at creation.
	ID string `json:"id" db:"id"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// Email is the lower-cased login key. It is unique across all users.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// Blocked is toggled by administrators.
	Blocked bool `json:"blocked" db:"blocked"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
