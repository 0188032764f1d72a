package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitekeeper/recipebox/internal/domain/user"
	"github.com/bitekeeper/recipebox/internal/http/handlers"
	"github.com/bitekeeper/recipebox/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// Fake implementation of the handlers.AdminUsersStore interface

type fakeAdminUsersRepo struct {
	listCursorFn func(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]user.User, *string, bool, error)
	getByIDFn    func(ctx context.Context, id string) (user.User, error)
	adminPatchFn func(ctx context.Context, id string, req user.AdminPatchUserRequest) (user.User, error)
	deleteFn     func(ctx context.Context, id string) error
}

func (f *fakeAdminUsersRepo) ListCursor(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]user.User, *string, bool, error) {
	if f.listCursorFn != nil {
		return f.listCursorFn(ctx, limit, afterCreatedAt, afterID)
	}

	return []user.User{}, nil, false, nil
}

func (f *fakeAdminUsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}

	return user.User{}, nil
}

func (f *fakeAdminUsersRepo) AdminPatch(ctx context.Context, id string, req user.AdminPatchUserRequest) (user.User, error) {
	if f.adminPatchFn != nil {
		return f.adminPatchFn(ctx, id, req)
	}

	return user.User{}, nil
}

func (f *fakeAdminUsersRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}

	return nil
}

type fakeTokenRevoker struct {
	revokeAllFn func(ctx context.Context, userID string) error
}

func (f *fakeTokenRevoker) RevokeAllForUser(ctx context.Context, userID string) error {
	if f.revokeAllFn != nil {
		return f.revokeAllFn(ctx, userID)
	}

	return nil
}

func staffUser(id string) user.User {
	return user.User{ID: id, Email: "admin@example.com", Name: "Admin", IsActive: true, IsStaff: true}
}

// mounts the handler behind RequireAuth plus RequireStaff, the way the
// admin group wires it
func setupAdminRouter(method, path string, u user.User, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	auth := middlewares.NewAuthMiddleware(staticResolver{u: u})
	r.Handle(method, path, auth.RequireAuth(), auth.RequireStaff(), h)

	return r
}

// --- access control tests

func TestAdminRoutes_RejectNonStaff(t *testing.T) {
	h := handlers.NewAdminUsersHandler(&fakeAdminUsersRepo{}, &fakeTokenRevoker{})

	r := setupAdminRouter(http.MethodGet, "/admin/users", activeUser(newUUID()), h.ListUsers)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Token test-token")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusForbidden, w.Body.String())
	}
}

func TestAdminRoutes_RejectAnonymous(t *testing.T) {
	h := handlers.NewAdminUsersHandler(&fakeAdminUsersRepo{}, &fakeTokenRevoker{})

	r := setupAdminRouter(http.MethodGet, "/admin/users", staffUser(newUUID()), h.ListUsers)

	// no Authorization header
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusUnauthorized, w.Body.String())
	}
}

// --- List users tests

func TestAdminListUsersHandler(t *testing.T) {
	now := time.Now().UTC()
	adminID := newUUID()

	const maxUUID = "ffffffff-ffff-ffff-ffff-ffffffffffff"
	listStart := time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		url            string
		repoSetup      func(*fakeAdminUsersRepo)
		wantStatusCode int
		wantCount      int
	}{
		{
			name: "success_first_page",
			url:  "/admin/users?limit=50",
			repoSetup: func(f *fakeAdminUsersRepo) {
				f.listCursorFn = func(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]user.User, *string, bool, error) {
					if !afterCreatedAt.Equal(listStart) || afterID != maxUUID {
						return nil, nil, false, errors.New("first page should start from the sentinel")
					}
					if limit != 50 {
						return nil, nil, false, errors.New("limit not passed through")
					}

					return []user.User{sampleUser(newUUID(), now), sampleUser(newUUID(), now)}, nil, false, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCount:      2,
		},

		{
			name:           "invalid_cursor",
			url:            "/admin/users?cursor=!!!",
			repoSetup:      nil,
			wantStatusCode: http.StatusBadRequest,
		},

		{
			name:           "limit_too_large",
			url:            "/admin/users?limit=1000",
			repoSetup:      nil,
			wantStatusCode: http.StatusBadRequest,
		},

		{
			name: "repo_error",
			url:  "/admin/users",
			repoSetup: func(f *fakeAdminUsersRepo) {
				f.listCursorFn = func(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]user.User, *string, bool, error) {
					return nil, nil, false, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeAdminUsersRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(fakeRepo)
			}

			h := handlers.NewAdminUsersHandler(fakeRepo, &fakeTokenRevoker{})
			r := setupAdminRouter(http.MethodGet, "/admin/users", staffUser(adminID), h.ListUsers)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			req.Header.Set("Authorization", "Token test-token")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp struct {
					Count int `json:"count"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.Count != tt.wantCount {
					t.Fatalf("got count %d, want %d", resp.Count, tt.wantCount)
				}
			}
		})
	}
}

// --- Get user tests

func TestAdminGetUserByIdHandler(t *testing.T) {
	now := time.Now().UTC()
	adminID := newUUID()
	validID := newUUID()

	tests := []struct {
		name           string
		url            string
		repoSetup      func(*fakeAdminUsersRepo)
		wantStatusCode int
	}{
		{
			name: "success",
			url:  "/admin/users/" + validID,
			repoSetup: func(f *fakeAdminUsersRepo) {
				f.getByIDFn = func(ctx context.Context, id string) (user.User, error) {
					return sampleUser(id, now), nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "not_found",
			url:  "/admin/users/" + newUUID(),
			repoSetup: func(f *fakeAdminUsersRepo) {
				f.getByIDFn = func(ctx context.Context, id string) (user.User, error) {
					return user.User{}, user.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "invalid_id",
			url:            "/admin/users/nope",
			repoSetup:      nil,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeAdminUsersRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(fakeRepo)
			}

			h := handlers.NewAdminUsersHandler(fakeRepo, &fakeTokenRevoker{})
			r := setupAdminRouter(http.MethodGet, "/admin/users/:id", staffUser(adminID), h.GetUserByID)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			req.Header.Set("Authorization", "Token test-token")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

// --- Patch user tests

func TestAdminPatchUserHandler_DeactivationRevokesSessions(t *testing.T) {
	now := time.Now().UTC()
	adminID := newUUID()
	targetID := newUUID()

	tests := []struct {
		name        string
		body        string
		wantRevoked bool
	}{
		{
			name:        "deactivate_revokes",
			body:        `{"isActive": false}`,
			wantRevoked: true,
		},
		{
			name:        "activate_does_not_revoke",
			body:        `{"isActive": true}`,
			wantRevoked: false,
		},
		{
			name:        "unrelated_patch_does_not_revoke",
			body:        `{"isStaff": true}`,
			wantRevoked: false,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeAdminUsersRepo{}
			fakeRepo.adminPatchFn = func(ctx context.Context, id string, req user.AdminPatchUserRequest) (user.User, error) {
				u := sampleUser(id, now)
				if req.IsActive != nil {
					u.IsActive = *req.IsActive
				}
				if req.IsStaff != nil {
					u.IsStaff = *req.IsStaff
				}
				return u, nil
			}

			revoked := false
			revoker := &fakeTokenRevoker{
				revokeAllFn: func(ctx context.Context, userID string) error {
					if userID != targetID {
						return errors.New("revoked sessions for the wrong user")
					}
					revoked = true
					return nil
				},
			}

			h := handlers.NewAdminUsersHandler(fakeRepo, revoker)
			r := setupAdminRouter(http.MethodPatch, "/admin/users/:id", staffUser(adminID), h.PatchUser)

			req := httptest.NewRequest(http.MethodPatch, "/admin/users/"+targetID, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Token test-token")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
			}

			if revoked != tt.wantRevoked {
				t.Fatalf("got revoked=%v, want %v", revoked, tt.wantRevoked)
			}
		})
	}
}

func TestAdminPatchUserHandler_NotFound(t *testing.T) {
	adminID := newUUID()

	fakeRepo := &fakeAdminUsersRepo{}
	fakeRepo.adminPatchFn = func(ctx context.Context, id string, req user.AdminPatchUserRequest) (user.User, error) {
		return user.User{}, user.ErrNotFound
	}

	h := handlers.NewAdminUsersHandler(fakeRepo, &fakeTokenRevoker{})
	r := setupAdminRouter(http.MethodPatch, "/admin/users/:id", staffUser(adminID), h.PatchUser)

	req := httptest.NewRequest(http.MethodPatch, "/admin/users/"+newUUID(), bytes.NewBufferString(`{"isActive": false}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token test-token")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusNotFound, w.Body.String())
	}
}

// --- Delete user tests

func TestAdminDeleteUserHandler(t *testing.T) {
	adminID := newUUID()
	targetID := newUUID()

	t.Run("revokes_sessions_before_delete", func(t *testing.T) {
		var order []string

		fakeRepo := &fakeAdminUsersRepo{}
		fakeRepo.deleteFn = func(ctx context.Context, id string) error {
			order = append(order, "delete")
			return nil
		}

		revoker := &fakeTokenRevoker{
			revokeAllFn: func(ctx context.Context, userID string) error {
				order = append(order, "revoke")
				return nil
			},
		}

		h := handlers.NewAdminUsersHandler(fakeRepo, revoker)
		r := setupAdminRouter(http.MethodDelete, "/admin/users/:id", staffUser(adminID), h.DeleteUser)

		req := httptest.NewRequest(http.MethodDelete, "/admin/users/"+targetID, nil)
		req.Header.Set("Authorization", "Token test-token")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}

		if len(order) != 2 || order[0] != "revoke" || order[1] != "delete" {
			t.Fatalf("expected revoke then delete, got %v", order)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		fakeRepo := &fakeAdminUsersRepo{}
		fakeRepo.deleteFn = func(ctx context.Context, id string) error {
			return user.ErrNotFound
		}

		h := handlers.NewAdminUsersHandler(fakeRepo, &fakeTokenRevoker{})
		r := setupAdminRouter(http.MethodDelete, "/admin/users/:id", staffUser(adminID), h.DeleteUser)

		req := httptest.NewRequest(http.MethodDelete, "/admin/users/"+newUUID(), nil)
		req.Header.Set("Authorization", "Token test-token")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusNotFound, w.Body.String())
		}
	})
}
