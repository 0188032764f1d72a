package tokens

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bitekeeper/recipebox/internal/domain/user"
)

// ErrInvalidToken covers every resolution failure: unknown, expired and
// revoked tokens, and tokens belonging to deactivated accounts. Callers
// must not be able to tell those cases apart.
var ErrInvalidToken = errors.New("invalid or expired token")

// Store persists token hashes. Only the HMAC of a token ever reaches
// the database; the raw value lives with the client alone.
type Store interface {
	Insert(ctx context.Context, id, userID, tokenHash string, expiresAt *time.Time, createdAt time.Time) error
	UserByHash(ctx context.Context, tokenHash string) (user.User, *time.Time, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// Cache is an optional read-through layer in front of Store. Lookups
// that miss or fail fall back to the database.
type Cache interface {
	GetUser(ctx context.Context, tokenHash string) (user.User, bool)
	SetUser(ctx context.Context, tokenHash, userID string, u user.User, ttl time.Duration)
	Invalidate(ctx context.Context, tokenHash string)
	InvalidateUser(ctx context.Context, userID string)
}

// Manager issues and resolves opaque API tokens.
type Manager struct {
	secret   []byte
	ttl      time.Duration
	cacheTTL time.Duration
	store    Store
	cache    Cache
}

// NewManager wires a token manager. ttl zero means issued tokens never
// expire. cache may be nil, cacheTTL bounds how long a resolved user
// may be served from it.
func NewManager(secret string, ttl time.Duration, store Store, cache Cache, cacheTTL time.Duration) *Manager {
	return &Manager{
		secret:   []byte(secret),
		ttl:      ttl,
		cacheTTL: cacheTTL,
		store:    store,
		cache:    cache,
	}
}

// Issue mints a fresh token for userID and persists its hash.
func (m *Manager) Issue(ctx context.Context, userID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	var expiresAt *time.Time
	if m.ttl > 0 {
		t := time.Now().UTC().Add(m.ttl)
		expiresAt = &t
	}
	if err := m.store.Insert(ctx, uuid.NewString(), userID, m.Hash(token), expiresAt, time.Now().UTC()); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve maps a raw token back to its active account.
func (m *Manager) Resolve(ctx context.Context, token string) (user.User, error) {
	hash := m.Hash(token)

	if m.cache != nil {
		if u, ok := m.cache.GetUser(ctx, hash); ok {
			if !u.IsActive {
				return user.User{}, ErrInvalidToken
			}
			return u, nil
		}
	}

	u, expiresAt, err := m.store.UserByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrInvalidToken
		}
		return user.User{}, err
	}
	if !u.IsActive {
		return user.User{}, ErrInvalidToken
	}

	if m.cache != nil {
		ttl := m.cacheTTL
		if expiresAt != nil {
			if remaining := time.Until(*expiresAt); remaining < ttl {
				ttl = remaining
			}
		}
		if ttl > 0 {
			m.cache.SetUser(ctx, hash, u.ID, u, ttl)
		}
	}
	return u, nil
}

// Revoke deletes the presented token.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	hash := m.Hash(token)
	if err := m.store.DeleteByHash(ctx, hash); err != nil {
		return err
	}
	if m.cache != nil {
		m.cache.Invalidate(ctx, hash)
	}
	return nil
}

// RevokeAllForUser deletes every token of one account. Used when an
// account is deactivated or removed so cached sessions die with it.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID string) error {
	if err := m.store.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	if m.cache != nil {
		m.cache.InvalidateUser(ctx, userID)
	}
	return nil
}

// Hash computes the HMAC-SHA256 of a raw token. Storing only hashes
// keeps a leaked database dump from yielding usable credentials.
func (m *Manager) Hash(token string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
