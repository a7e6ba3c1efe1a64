package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cuworking/pkg/config"
	"cuworking/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct{}

func (echoHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/echo", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":"ok"}`))
	})
}

func testConfig() *config.Config {
	return &config.Config{
		Port:              config.DefaultPort,
		RateLimitRequests: 2,
		RateLimitWindow:   config.DefaultRateLimitWindow,
		RequestTimeout:    config.DefaultRequestTimeout,
		IdempotencyTTL:    config.DefaultIdempotencyTTL,
		MaxRequestSize:    64,
		ReadTimeout:       config.DefaultReadTimeout,
		WriteTimeout:      config.DefaultWriteTimeout,
		IdleTimeout:       config.DefaultIdleTimeout,
		ShutdownTimeout:   config.DefaultShutdownTimeout,
		Log:               logger.Discard(),
	}
}

func newTestApp(t *testing.T) (*Application, *bool) {
	t.Helper()
	a := NewApplication(testConfig())
	a.SetApp(echoHandler{})
	hooked := false
	a.OnShutdown(func() { hooked = true })
	t.Cleanup(a.stopWorkers)
	return a, &hooked
}

func TestApplication_RoutesThroughMiddleware(t *testing.T) {
	a, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestApplication_RejectsWrongContentTypeAndLargeBodies(t *testing.T) {
	a, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(`name=x`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(`{"x":"`+strings.Repeat("a", 100)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestApplication_RateLimited(t *testing.T) {
	a, _ := newTestApp(t)

	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.0.0.1:5000"
		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}

func TestApplication_HealthBypassesAppStack(t *testing.T) {
	a, _ := newTestApp(t)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestApplication_ShutdownHooksRun(t *testing.T) {
	a, hooked := newTestApp(t)
	a.stopWorkers()
	assert.True(t, *hooked)
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		deps       map[string]Pinger
		wantStatus int
		wantDeps   map[string]string
	}{
		{
			name:       "no dependencies",
			deps:       map[string]Pinger{},
			wantStatus: http.StatusOK,
		},
		{
			name: "all healthy",
			deps: map[string]Pinger{
				"mongo": PingerFunc(func(context.Context) error { return nil }),
			},
			wantStatus: http.StatusOK,
			wantDeps:   map[string]string{"mongo": "ok"},
		},
		{
			name: "one failing",
			deps: map[string]Pinger{
				"mongo": PingerFunc(func(context.Context) error { return nil }),
				"redis": PingerFunc(func(context.Context) error { return errors.New("connection refused") }),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantDeps:   map[string]string{"mongo": "ok", "redis": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := httprouter.New()
			NewHealthHandler(tt.deps, logger.Discard()).RegisterRoutes(router)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var body HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.wantDeps != nil {
				assert.Equal(t, tt.wantDeps, body.Dependencies)
			}
		})
	}
}
