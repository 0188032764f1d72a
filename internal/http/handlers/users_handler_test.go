package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bitekeeper/recipebox/internal/domain/user"
	"github.com/bitekeeper/recipebox/internal/http/handlers"
	"github.com/bitekeeper/recipebox/internal/repo/postgres"
)

// Fake implementation of the handlers.UserService interface

type fakeUserService struct {
	createFn        func(ctx context.Context, req user.CreateUserRequest) (user.User, error)
	authenticateFn  func(ctx context.Context, email, password string) (user.User, error)
	getByIDFn       func(ctx context.Context, id string) (user.User, error)
	updateProfileFn func(ctx context.Context, id string, email, name, password *string) (user.User, error)
}

func (f *fakeUserService) Create(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}

	return user.User{}, nil
}

func (f *fakeUserService) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	if f.authenticateFn != nil {
		return f.authenticateFn(ctx, email, password)
	}

	return user.User{}, nil
}

func (f *fakeUserService) GetByID(ctx context.Context, id string) (user.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}

	return user.User{}, nil
}

func (f *fakeUserService) UpdateProfile(ctx context.Context, id string, email, name, password *string) (user.User, error) {
	if f.updateProfileFn != nil {
		return f.updateProfileFn(ctx, id, email, name, password)
	}

	return user.User{}, nil
}

type fakeTokenIssuer struct {
	issueFn  func(ctx context.Context, userID string) (string, error)
	revokeFn func(ctx context.Context, token string) error
}

func (f *fakeTokenIssuer) Issue(ctx context.Context, userID string) (string, error) {
	if f.issueFn != nil {
		return f.issueFn(ctx, userID)
	}

	return "issued-token", nil
}

func (f *fakeTokenIssuer) Revoke(ctx context.Context, token string) error {
	if f.revokeFn != nil {
		return f.revokeFn(ctx, token)
	}

	return nil
}

func sampleUser(id string, now time.Time) user.User {
	return user.User{
		ID:           id,
		Email:        "cook@example.com",
		PasswordHash: "$2a$10$should-never-leak",
		Name:         "Cook",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// --- Register tests

func TestCreateUserHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		body           string
		svcSetup       func(*fakeUserService)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"email": "cook@example.com", "password": "changeme", "name": "Cook"}`,
			svcSetup: func(f *fakeUserService) {
				f.createFn = func(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
					u := sampleUser(newUUID(), now)
					u.Email = req.Email
					u.Name = req.Name
					return u, nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},

		{
			name: "email_already_used",
			body: `{"email": "cook@example.com", "password": "changeme", "name": "Cook"}`,
			svcSetup: func(f *fakeUserService) {
				f.createFn = func(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
					return user.User{}, postgres.ErrEmailAlreadyUsed
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},

		{
			name:           "password_too_short",
			body:           `{"email": "cook@example.com", "password": "pw", "name": "Cook"}`,
			svcSetup:       nil, // validation should reject before the service runs
			wantStatusCode: http.StatusBadRequest,
		},

		{
			name:           "invalid_email",
			body:           `{"email": "not-an-email", "password": "changeme", "name": "Cook"}`,
			svcSetup:       nil,
			wantStatusCode: http.StatusBadRequest,
		},

		{
			name: "service_error",
			body: `{"email": "cook@example.com", "password": "changeme", "name": "Cook"}`,
			svcSetup: func(f *fakeUserService) {
				f.createFn = func(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
					return user.User{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUserService{}

			if tt.svcSetup != nil {
				tt.svcSetup(svc)
			}

			h := handlers.NewUsersHandler(svc, &fakeTokenIssuer{})
			r := setupRouter(http.MethodPost, "/users", h.Create)

			req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestCreateUserHandler_DoesNotEchoPassword(t *testing.T) {
	now := time.Now().UTC()

	svc := &fakeUserService{}
	svc.createFn = func(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
		return sampleUser(newUUID(), now), nil
	}

	h := handlers.NewUsersHandler(svc, &fakeTokenIssuer{})
	r := setupRouter(http.MethodPost, "/users", h.Create)

	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString(`{"email": "cook@example.com", "password": "changeme", "name": "Cook"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if strings.Contains(w.Body.String(), "should-never-leak") || strings.Contains(w.Body.String(), "changeme") {
		t.Fatalf("response leaks credentials: %s", w.Body.String())
	}
}

// --- Token tests

func TestObtainTokenHandler(t *testing.T) {
	now := time.Now().UTC()
	userID := newUUID()

	tests := []struct {
		name           string
		body           string
		svcSetup       func(*fakeUserService)
		issuerSetup    func(*fakeTokenIssuer)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"email": "cook@example.com", "password": "changeme"}`,
			svcSetup: func(f *fakeUserService) {
				f.authenticateFn = func(ctx context.Context, email, password string) (user.User, error) {
					return sampleUser(userID, now), nil
				}
			},
			issuerSetup: func(f *fakeTokenIssuer) {
				f.issueFn = func(ctx context.Context, uid string) (string, error) {
					if uid != userID {
						return "", errors.New("token issued for wrong user")
					}
					return "fresh-token", nil
				}
			},
			wantStatusCode: http.StatusOK,
		},

		{
			name: "bad_credentials",
			body: `{"email": "cook@example.com", "password": "wrong"}`,
			svcSetup: func(f *fakeUserService) {
				f.authenticateFn = func(ctx context.Context, email, password string) (user.User, error) {
					return user.User{}, user.ErrInvalidCredentials
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},

		// missing user and wrong password must be indistinguishable
		{
			name: "unknown_email",
			body: `{"email": "ghost@example.com", "password": "changeme"}`,
			svcSetup: func(f *fakeUserService) {
				f.authenticateFn = func(ctx context.Context, email, password string) (user.User, error) {
					return user.User{}, user.ErrInvalidCredentials
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},

		{
			name:           "missing_password",
			body:           `{"email": "cook@example.com"}`,
			svcSetup:       nil,
			wantStatusCode: http.StatusBadRequest,
		},

		{
			name: "issuer_error",
			body: `{"email": "cook@example.com", "password": "changeme"}`,
			svcSetup: func(f *fakeUserService) {
				f.authenticateFn = func(ctx context.Context, email, password string) (user.User, error) {
					return sampleUser(userID, now), nil
				}
			},
			issuerSetup: func(f *fakeTokenIssuer) {
				f.issueFn = func(ctx context.Context, uid string) (string, error) {
					return "", errors.New("store down")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUserService{}
			issuer := &fakeTokenIssuer{}

			if tt.svcSetup != nil {
				tt.svcSetup(svc)
			}
			if tt.issuerSetup != nil {
				tt.issuerSetup(issuer)
			}

			h := handlers.NewUsersHandler(svc, issuer)
			r := setupRouter(http.MethodPost, "/users/token", h.ObtainToken)

			req := httptest.NewRequest(http.MethodPost, "/users/token", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp struct {
					Token string `json:"token"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.Token != "fresh-token" {
					t.Fatalf("got token %q, want %q", resp.Token, "fresh-token")
				}
			}

			if tt.wantStatusCode == http.StatusUnauthorized {
				// No hint about which part of the pair failed.
				if !strings.Contains(w.Body.String(), "Unable to authenticate") {
					t.Fatalf("expected the generic credentials message, body=%s", w.Body.String())
				}
			}
		})
	}
}

func TestRevokeTokenHandler(t *testing.T) {
	now := time.Now().UTC()
	userID := newUUID()

	var revoked string
	issuer := &fakeTokenIssuer{
		revokeFn: func(ctx context.Context, token string) error {
			revoked = token
			return nil
		},
	}

	h := handlers.NewUsersHandler(&fakeUserService{}, issuer)
	r := setupAuthedRouter(http.MethodDelete, "/users/token", sampleUser(userID, now), h.RevokeToken)

	req := httptest.NewRequest(http.MethodDelete, "/users/token", nil)
	req.Header.Set("Authorization", "Token test-token")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	// middleware stashes the presented token, handler revokes that one
	if revoked != "test-token" {
		t.Fatalf("got revoked token %q, want %q", revoked, "test-token")
	}
}

// --- Profile tests

func TestMeHandler(t *testing.T) {
	now := time.Now().UTC()
	userID := newUUID()

	svc := &fakeUserService{}
	svc.getByIDFn = func(ctx context.Context, id string) (user.User, error) {
		if id != userID {
			return user.User{}, errors.New("wrong id passed to service")
		}
		return sampleUser(id, now), nil
	}

	h := handlers.NewUsersHandler(svc, &fakeTokenIssuer{})
	r := setupAuthedRouter(http.MethodGet, "/users/me", sampleUser(userID, now), h.Me)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Token test-token")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if w.Header().Get("ETag") == "" {
		t.Fatalf("expected ETag header on profile response")
	}

	if !strings.Contains(w.Body.String(), `"email":"cook@example.com"`) {
		t.Fatalf("expected profile fields in body, got %s", w.Body.String())
	}
}

func TestMeHandler_RequiresAuth(t *testing.T) {
	h := handlers.NewUsersHandler(&fakeUserService{}, &fakeTokenIssuer{})
	r := setupAuthedRouter(http.MethodGet, "/users/me", activeUser(newUUID()), h.Me)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusUnauthorized, w.Body.String())
	}
}

func TestUpdateMeHandler(t *testing.T) {
	now := time.Now().UTC()
	userID := newUUID()

	tests := []struct {
		name           string
		body           string
		svcSetup       func(*fakeUserService)
		wantStatusCode int
	}{
		{
			name: "success_without_password",
			body: `{"email": "new@example.com", "name": "New Name"}`,
			svcSetup: func(f *fakeUserService) {
				f.updateProfileFn = func(ctx context.Context, id string, email, name, password *string) (user.User, error) {
					if password != nil {
						return user.User{}, errors.New("password should stay nil when omitted")
					}
					if email == nil || *email != "new@example.com" {
						return user.User{}, errors.New("email not passed")
					}

					u := sampleUser(id, now)
					u.Email = *email
					u.Name = *name
					return u, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},

		{
			name: "success_with_password",
			body: `{"email": "new@example.com", "name": "New Name", "password": "changed-pw"}`,
			svcSetup: func(f *fakeUserService) {
				f.updateProfileFn = func(ctx context.Context, id string, email, name, password *string) (user.User, error) {
					if password == nil || *password != "changed-pw" {
						return user.User{}, errors.New("password not passed")
					}
					return sampleUser(id, now), nil
				}
			},
			wantStatusCode: http.StatusOK,
		},

		{
			name:           "short_password",
			body:           `{"email": "new@example.com", "name": "New Name", "password": "pw"}`,
			svcSetup:       nil,
			wantStatusCode: http.StatusBadRequest,
		},

		{
			name: "email_conflict",
			body: `{"email": "taken@example.com", "name": "New Name"}`,
			svcSetup: func(f *fakeUserService) {
				f.updateProfileFn = func(ctx context.Context, id string, email, name, password *string) (user.User, error) {
					return user.User{}, postgres.ErrEmailAlreadyUsed
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUserService{}

			if tt.svcSetup != nil {
				tt.svcSetup(svc)
			}

			h := handlers.NewUsersHandler(svc, &fakeTokenIssuer{})
			r := setupAuthedRouter(http.MethodPut, "/users/me", sampleUser(userID, now), h.UpdateMe)

			req := httptest.NewRequest(http.MethodPut, "/users/me", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Token test-token")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestPatchMeHandler_OnlyTouchesSentFields(t *testing.T) {
	now := time.Now().UTC()
	userID := newUUID()

	svc := &fakeUserService{}
	svc.updateProfileFn = func(ctx context.Context, id string, email, name, password *string) (user.User, error) {
		if email != nil || password != nil {
			return user.User{}, errors.New("untouched fields should be nil")
		}
		if name == nil || *name != "Just The Name" {
			return user.User{}, errors.New("name not passed")
		}

		u := sampleUser(id, now)
		u.Name = *name
		return u, nil
	}

	h := handlers.NewUsersHandler(svc, &fakeTokenIssuer{})
	r := setupAuthedRouter(http.MethodPatch, "/users/me", sampleUser(userID, now), h.PatchMe)

	req := httptest.NewRequest(http.MethodPatch, "/users/me", bytes.NewBufferString(`{"name": "Just The Name"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token test-token")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if !strings.Contains(w.Body.String(), `"name":"Just The Name"`) {
		t.Fatalf("expected updated name in body, got %s", w.Body.String())
	}
}
