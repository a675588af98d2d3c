package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkolev/warrantyhub/pkg/apperr"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusOK, map[string]string{"name": "Acme"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Acme", body["name"])
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"unauthenticated", apperr.Unauthenticated(), http.StatusUnauthorized},
		{"forbidden", apperr.Forbidden(), http.StatusForbidden},
		{"not found", apperr.NotFound("account"), http.StatusNotFound},
		{"validation", apperr.Validation("name", "name is required"), http.StatusBadRequest},
		{"conflict", apperr.New(apperr.KindConflict, "already exists"), http.StatusConflict},
		{"storage", apperr.New(apperr.KindStorage, "blob store unavailable"), http.StatusServiceUnavailable},
		{"unclassified", errors.New("pq: connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteAppError(rec, tt.err)
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestWriteAppErrorBodyOmitsKind(t *testing.T) {
	t.Run("conflict carries the bare message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteAppError(rec, apperr.New(apperr.KindConflict, "user is already a member of this account"))

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "user is already a member of this account", body["error"])
	})

	t.Run("validation names the field separately", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteAppError(rec, apperr.Validation("warrantyPeriodMonths", "must be at least 1"))

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "must be at least 1", body["error"])
		assert.Equal(t, "warrantyPeriodMonths", body["field"])
	})
}

func TestWriteAppErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, errors.New("pq: password authentication failed for user postgres"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])
}

func TestWriteNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteNoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
