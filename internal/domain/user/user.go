package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User is an account holder. PasswordHash is never serialized.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	IsActive     bool       `json:"isActive"`
	IsStaff      bool       `json:"isStaff"`
	IsSuperuser  bool       `json:"isSuperuser"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// New builds a regular active account from an already-hashed password.
func New(email, passwordHash, name string) User {
	now := time.Now().UTC()
	return User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewSuperuser builds a staff account with every privilege flag set.
func NewSuperuser(email, passwordHash, name string) User {
	u := New(email, passwordHash, name)
	u.IsStaff = true
	u.IsSuperuser = true
	return u
}

// NormalizeEmail lowercases the domain part of an address while leaving
// the local part alone, so MyName@EXAMPLE.COM and MyName@example.com
// land on the same account without collapsing case-sensitive mailboxes.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// CreateUserRequest is the self-registration payload.
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=5,max=128"`
	Name     string `json:"name" binding:"required,min=1,max=255"`
}

// UpdateMeRequest replaces the caller's profile. Password is optional;
// when present it is re-hashed and stored.
type UpdateMeRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Name     string `json:"name" binding:"required,min=1,max=255"`
	Password string `json:"password" binding:"omitempty,min=5,max=128"`
}

// PatchMeRequest updates only the fields present in the payload.
type PatchMeRequest struct {
	Email    *string `json:"email" binding:"omitempty,email,max=255"`
	Name     *string `json:"name" binding:"omitempty,min=1,max=255"`
	Password *string `json:"password" binding:"omitempty,min=5,max=128"`
}

// ObtainTokenRequest trades credentials for an API token.
type ObtainTokenRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AdminPatchUserRequest lets staff flip account flags or rename accounts.
type AdminPatchUserRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=255"`
	IsActive    *bool   `json:"isActive"`
	IsStaff     *bool   `json:"isStaff"`
	IsSuperuser *bool   `json:"isSuperuser"`
}
