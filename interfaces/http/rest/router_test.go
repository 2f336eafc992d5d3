package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSetupMountsLegacyV1Surface(t *testing.T) {
	rt := NewRouter(nil, nil, nil, nil, zap.NewNop())
	handler := rt.Setup()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	// The legacy surface answers directly; anything but a 404 proves the
	// mux router is mounted and matching
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-API-Deprecated"))
	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))
}

func TestSetupServesCurrentHealthEndpoints(t *testing.T) {
	rt := NewRouter(nil, nil, nil, nil, zap.NewNop())
	handler := rt.Setup()

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "v2", rec.Header().Get("X-API-Version"), path)
	}
}
