package types

import "time"

// Roles assignable to a user. New sign-ups start as RoleUser; elevated
// roles are granted by an admin through the users resource.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address, unique across accounts.
	Email string `json:"email" db:"email"`

	// FirstName is the user's given name, optional.
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's family name, optional.
	LastName string `json:"last_name" db:"last_name"`

	// Bio is a free-form description the user writes about themselves.
	Bio string `json:"bio" db:"bio"`

	// Role indicates the user's authorization level within the system.
	// One of RoleUser, RoleModerator, RoleAdmin.
	Role string `json:"role" db:"role"`

	// ConfirmationCodeHash stores the bcrypt hash of the confirmation
	// code most recently issued at sign-up. Empty until the first
	// sign-up request. Never exposed in API responses.
	ConfirmationCodeHash string `json:"-" db:"confirmation_code_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsModerator reports whether the user holds the moderator role.
func (u User) IsModerator() bool {
	return u.Role == RoleModerator
}

// ValidRole reports whether role is one of the assignable role values.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}
