// Package service holds the account workflows shared by the public
// handlers and the startup superuser seed: normalization, password
// hashing and credential checks live here so no caller reimplements
// them.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/bitekeeper/recipebox/internal/domain/user"
	"github.com/bitekeeper/recipebox/internal/security"
)

type UsersRepo interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdateProfile(ctx context.Context, id string, email, name, passwordHash *string) (user.User, error)
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}

type Users struct {
	repo UsersRepo
}

func NewUsers(repo UsersRepo) *Users {
	return &Users{repo: repo}
}

// Create registers a regular account. The email domain is lowercased
// before storage and the password is bcrypt hashed.
func (s *Users) Create(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
	email := user.NormalizeEmail(req.Email)

	if email == "" {
		return user.User{}, user.ErrEmailRequired
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		return user.User{}, err
	}

	return s.repo.Create(ctx, user.New(email, hash, req.Name))
}

// Authenticate checks credentials and records the login time. Every
// failure mode collapses into ErrInvalidCredentials so responses never
// reveal whether the address is registered.
func (s *Users) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	u, err := s.repo.GetByEmail(ctx, user.NormalizeEmail(email))

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, user.ErrInvalidCredentials
		}

		return user.User{}, err
	}

	if !u.IsActive {
		return user.User{}, user.ErrInvalidCredentials
	}

	if err := security.CheckPassword(u.PasswordHash, password); err != nil {
		return user.User{}, user.ErrInvalidCredentials
	}

	now := time.Now().UTC()

	if err := s.repo.SetLastLogin(ctx, u.ID, now); err != nil {
		return user.User{}, err
	}

	u.LastLogin = &now

	return u, nil
}

func (s *Users) GetByID(ctx context.Context, id string) (user.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile changes the given fields on the caller's account. A
// new password is re-hashed, a new email re-normalized.
func (s *Users) UpdateProfile(ctx context.Context, id string, email, name, password *string) (user.User, error) {
	if email != nil {
		normalized := user.NormalizeEmail(*email)

		if normalized == "" {
			return user.User{}, user.ErrEmailRequired
		}

		email = &normalized
	}

	var passwordHash *string

	if password != nil {
		hash, err := security.HashPassword(*password)

		if err != nil {
			return user.User{}, err
		}

		passwordHash = &hash
	}

	return s.repo.UpdateProfile(ctx, id, email, name, passwordHash)
}
