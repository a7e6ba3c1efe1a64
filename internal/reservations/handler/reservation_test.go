package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cuworking/internal/reservations/service"
	"cuworking/pkg/auth"
	apperrors "cuworking/pkg/errors"
	httputil "cuworking/pkg/http"
	"cuworking/pkg/logger"
	"cuworking/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userID  = "65f1a2b3c4d5e6f708192b01"
	placeID = "65f1a2b3c4d5e6f708192a01"
	resID   = "65f1a2b3c4d5e6f708192c01"
)

type mockReservationService struct {
	createFunc func(ctx context.Context, userID string, window *model.ReservationWindow) (*model.Reservation, error)
	listFunc   func(ctx context.Context, userID, status string) ([]*model.Reservation, error)
	cancelFunc func(ctx context.Context, id, userID string) (*model.Reservation, error)
	moveFunc   func(ctx context.Context, id, userID string, start, end time.Time) (*model.Reservation, error)
}

var _ service.ReservationService = (*mockReservationService)(nil)

func (m *mockReservationService) Create(ctx context.Context, userID string, window *model.ReservationWindow) (*model.Reservation, error) {
	return m.createFunc(ctx, userID, window)
}

func (m *mockReservationService) List(ctx context.Context, userID, status string) ([]*model.Reservation, error) {
	return m.listFunc(ctx, userID, status)
}

func (m *mockReservationService) Cancel(ctx context.Context, id, userID string) (*model.Reservation, error) {
	return m.cancelFunc(ctx, id, userID)
}

func (m *mockReservationService) Move(ctx context.Context, id, userID string, start, end time.Time) (*model.Reservation, error) {
	return m.moveFunc(ctx, id, userID, start, end)
}

type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(_ context.Context, username, password string) (*model.User, error) {
	if username == "alice" && password == "secret" {
		return &model.User{ID: userID, Username: "alice"}, nil
	}
	return nil, apperrors.Unauthorized("Invalid credentials")
}

func newRouter(svc service.ReservationService) *httprouter.Router {
	log := logger.Discard()
	h := NewReservationHandler(svc, auth.NewGuard(stubAuthenticator{}, log), log)
	router := httprouter.New()
	h.RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		req.SetBasicAuth("alice", "secret")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreate(t *testing.T) {
	var got *model.ReservationWindow
	svc := &mockReservationService{
		createFunc: func(_ context.Context, uid string, window *model.ReservationWindow) (*model.Reservation, error) {
			assert.Equal(t, userID, uid)
			got = window
			return &model.Reservation{
				ID: resID, PlaceID: window.PlaceID, UserID: uid,
				StartTime: window.StartTime, EndTime: window.EndTime, Status: model.ReservationActive,
			}, nil
		},
	}
	router := newRouter(svc)

	w := do(router, http.MethodPost, "/api/v1/reservations",
		`{"place_id":"`+placeID+`","start_time":"2026-03-14T10:00","end_time":"2026-03-14T13:00:00+03:00"}`, true)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, got)
	assert.True(t, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC).Equal(got.StartTime))
	assert.True(t, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC).Equal(got.EndTime))

	var body struct {
		Data model.Reservation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, resID, body.Data.ID)
	assert.Equal(t, model.ReservationActive, body.Data.Status)
}

func TestCreate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "conflict",
			body:       `{"place_id":"` + placeID + `","start_time":"2026-03-14T11:00:00Z","end_time":"2026-03-14T13:00:00Z"}`,
			serviceErr: apperrors.Conflict("overlap"),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeConflict,
		},
		{
			name:       "validation from service",
			body:       `{"place_id":"` + placeID + `","start_time":"2026-03-14T12:00:00Z","end_time":"2026-03-14T10:00:00Z"}`,
			serviceErr: apperrors.Validation("bad", nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.CodeValidation,
		},
		{
			name:       "unparseable timestamp",
			body:       `{"place_id":"` + placeID + `","start_time":"soon","end_time":"2026-03-14T10:00:00Z"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.CodeValidation,
		},
		{
			name:       "malformed body",
			body:       `{"place_id":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.CodeInvalidInput,
		},
		{
			name:       "storage failure",
			body:       `{"place_id":"` + placeID + `","start_time":"2026-03-14T10:00:00Z","end_time":"2026-03-14T11:00:00Z"}`,
			serviceErr: apperrors.Internal("Failed to create reservation", nil),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockReservationService{
				createFunc: func(context.Context, string, *model.ReservationWindow) (*model.Reservation, error) {
					called = true
					return nil, tt.serviceErr
				},
			}

			w := do(newRouter(svc), http.MethodPost, "/api/v1/reservations", tt.body, true)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
			assert.Equal(t, tt.serviceErr != nil, called)
		})
	}
}

func TestRoutesRequireAuthentication(t *testing.T) {
	router := newRouter(&mockReservationService{})

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/reservations"},
		{http.MethodGet, "/api/v1/reservations"},
		{http.MethodPost, "/api/v1/reservations/" + resID + "/cancel"},
		{http.MethodPost, "/api/v1/reservations/" + resID + "/move"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			w := do(router, route.method, route.path, "", false)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestList(t *testing.T) {
	var gotStatus string
	svc := &mockReservationService{
		listFunc: func(_ context.Context, uid, status string) ([]*model.Reservation, error) {
			gotStatus = status
			return nil, nil
		},
	}

	w := do(newRouter(svc), http.MethodGet, "/api/v1/reservations?status=active", "", true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", gotStatus)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"success", nil, http.StatusOK},
		{"not found", apperrors.NotFound("Reservation"), http.StatusNotFound},
		{"already cancelled", apperrors.InvalidState("Reservation is not active"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockReservationService{
				cancelFunc: func(_ context.Context, id, uid string) (*model.Reservation, error) {
					assert.Equal(t, resID, id)
					assert.Equal(t, userID, uid)
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &model.Reservation{ID: id, Status: model.ReservationCancelled}, nil
				},
			}

			w := do(newRouter(svc), http.MethodPost, "/api/v1/reservations/"+resID+"/cancel", "", true)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestMove(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{"success", `{"start_time":"2026-03-14T11:00:00Z","end_time":"2026-03-14T12:00:00Z"}`, nil, http.StatusOK},
		{"conflict", `{"start_time":"2026-03-14T11:00:00Z","end_time":"2026-03-14T12:00:00Z"}`, apperrors.Conflict("overlap"), http.StatusConflict},
		{"not found", `{"start_time":"2026-03-14T11:00:00Z","end_time":"2026-03-14T12:00:00Z"}`, apperrors.NotFound("Reservation"), http.StatusNotFound},
		{"invalid state", `{"start_time":"2026-03-14T11:00:00Z","end_time":"2026-03-14T12:00:00Z"}`, apperrors.InvalidState("x"), http.StatusBadRequest},
		{"missing end", `{"start_time":"2026-03-14T11:00:00Z"}`, nil, http.StatusBadRequest},
		{"no body", ``, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockReservationService{
				moveFunc: func(_ context.Context, id, _ string, start, end time.Time) (*model.Reservation, error) {
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &model.Reservation{ID: id, StartTime: start, EndTime: end, Status: model.ReservationActive}, nil
				},
			}

			w := do(newRouter(svc), http.MethodPost, "/api/v1/reservations/"+resID+"/move", tt.body, true)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}
