package types

import "time"

// User represents an account in the system.
// It contains identity, access flags, and audit metadata.
type User struct {
	// ID is the unique identifier of the user, assigned by the store.
	ID int64 `json:"id" db:"id"`

	// Email is the user's login identity. It is stored lowercased.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"hashed_password"`

	// FullName is the user's display name, nil when not provided.
	FullName *string `json:"full_name" db:"full_name"`

	// IsActive reports whether the account may use authenticated endpoints.
	IsActive bool `json:"is_active" db:"is_active"`

	// IsSuperuser grants access to administrative operations.
	IsSuperuser bool `json:"is_superuser" db:"is_superuser"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserCreate carries the fields accepted when creating a user.
type UserCreate struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FullName    *string `json:"full_name,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsSuperuser bool    `json:"is_superuser"`
}

// UserPatch is a partial update. Nil fields are left untouched.
type UserPatch struct {
	Email       *string `json:"email,omitempty"`
	Password    *string `json:"password,omitempty"`
	FullName    *string `json:"full_name,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Email == nil && p.Password == nil && p.FullName == nil && p.IsActive == nil && p.IsSuperuser == nil
}

// TouchesPrivileges reports whether the patch changes access flags.
func (p UserPatch) TouchesPrivileges() bool {
	return p.IsActive != nil || p.IsSuperuser != nil
}

// UserStats summarizes the user table for administrative reports.
type UserStats struct {
	Total       int `json:"total_users"`
	Active      int `json:"active_users"`
	Inactive    int `json:"inactive_users"`
	Superusers  int `json:"superusers"`
	CreatedLast int `json:"created_last_30_days"`
}
