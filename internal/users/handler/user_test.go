package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cuworking/pkg/auth"
	apperrors "cuworking/pkg/errors"
	"cuworking/pkg/logger"
	"cuworking/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID = "65f1a2b3c4d5e6f708192b00"

type mockUserService struct {
	registerFunc func(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	deleteFunc   func(ctx context.Context, actorID, id string) error
}

func (m *mockUserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	return m.registerFunc(ctx, req)
}

func (m *mockUserService) Authenticate(_ context.Context, username, password string) (*model.User, error) {
	switch {
	case username == "admin" && password == "secret":
		return &model.User{ID: adminID, Username: username, IsAdmin: true}, nil
	case username == "alice" && password == "secret":
		return &model.User{ID: "65f1a2b3c4d5e6f708192b01", Username: username, Email: "alice@example.com", PasswordHash: "$2a$hash"}, nil
	}
	return nil, apperrors.Unauthorized("Invalid username or password")
}

func (m *mockUserService) GetAll(context.Context, int, int64) ([]*model.User, int64, error) {
	return nil, 0, nil
}

func (m *mockUserService) Delete(ctx context.Context, actorID, id string) error {
	return m.deleteFunc(ctx, actorID, id)
}

func newRouter(svc *mockUserService) *httprouter.Router {
	log := logger.Discard()
	router := httprouter.New()
	NewUserHandler(svc, auth.NewGuard(svc, log), log).RegisterRoutes(router)
	return router
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{"created", `{"username":"bob","email":"bob@example.com","password":"secret1"}`, nil, http.StatusCreated},
		{"duplicate", `{"username":"bob","email":"bob@example.com","password":"secret1"}`, apperrors.Conflict("exists"), http.StatusConflict},
		{"validation", `{"username":"b"}`, apperrors.Validation("bad", nil), http.StatusBadRequest},
		{"malformed", `{"username":`, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				registerFunc: func(_ context.Context, req *model.RegisterRequest) (*model.User, error) {
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &model.User{ID: "u1", Username: req.Username, Email: req.Email, PasswordHash: "hash"}, nil
				},
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/register", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotContains(t, w.Body.String(), "password")
		})
	}
}

func TestMe(t *testing.T) {
	router := newRouter(&mockUserService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.SetBasicAuth("alice", "secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.Data["username"])
	assert.NotContains(t, body.Data, "password_hash")
	assert.NotContains(t, w.Body.String(), "$2a$hash")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.SetBasicAuth("alice", "wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	var gotActor, gotID string
	svc := &mockUserService{
		deleteFunc: func(_ context.Context, actorID, id string) error {
			gotActor, gotID = actorID, id
			return nil
		},
	}
	router := newRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req.SetBasicAuth("alice", "secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req.SetBasicAuth("admin", "secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/u42", nil)
	req.SetBasicAuth("admin", "secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, adminID, gotActor)
	assert.Equal(t, "u42", gotID)
}
