package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "cuworking/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339 utc", input: "2026-03-14T10:00:00Z", want: want},
		{name: "rfc3339 with offset", input: "2026-03-14T13:00:00+03:00", want: want},
		{name: "naive seconds", input: "2026-03-14T10:00:00", want: want},
		{name: "naive minutes", input: "2026-03-14T10:00", want: want},
		{name: "naive fractional", input: "2026-03-14T10:00:00.000", want: want},
		{name: "space separated", input: "2026-03-14 10:00:00", want: want},
		{name: "surrounding spaces", input: "  2026-03-14T10:00:00Z ", want: want},
		{name: "empty", input: "", wantErr: true},
		{name: "date only", input: "2026-03-14", wantErr: true},
		{name: "garbage", input: "tomorrow at ten", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp("start_time", tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestExtractLimitOffset(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int64
		wantErr    bool
	}{
		{name: "defaults", query: "", wantLimit: 10, wantOffset: 0},
		{name: "explicit", query: "?limit=20&offset=40", wantLimit: 20, wantOffset: 40},
		{name: "clamped", query: "?limit=1000&offset=-1", wantLimit: 100, wantOffset: 0},
		{name: "bad limit", query: "?limit=abc", wantErr: true},
		{name: "bad offset", query: "?offset=xyz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/places"+tt.query, nil)
			limit, offset, err := ExtractLimitOffset(req)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"conflict", apperrors.Conflict("overlap"), http.StatusConflict, apperrors.CodeConflict},
		{"invalid state", apperrors.InvalidState("cancelled"), http.StatusBadRequest, apperrors.CodeInvalidState},
		{"not found", apperrors.NotFound("Reservation"), http.StatusNotFound, apperrors.CodeNotFound},
		{"validation", apperrors.Validation("bad", nil), http.StatusBadRequest, apperrors.CodeValidation},
		{"plain error hidden", errors.New("mongo: connection refused"), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, WriteError(w, tt.err))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotContains(t, body.Error, "connection refused")
		})
	}
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteCreated(w, map[string]string{"id": "1"}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"data":{"id":"1"}}`, w.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"F206"}`))
		require.NoError(t, DecodeJSON(req, &p))
		assert.Equal(t, "F206", p.Name)
	})

	t.Run("malformed", func(t *testing.T) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
		err := DecodeJSON(req, &p)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
	})

	t.Run("empty", func(t *testing.T) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		err := DecodeJSON(req, &p)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
	})

	t.Run("too large", func(t *testing.T) {
		var p payload
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("x", 64)+`"}`))
		req.Body = http.MaxBytesReader(w, req.Body, 16)
		err := DecodeJSON(req, &p)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeTooLarge))
	})
}
