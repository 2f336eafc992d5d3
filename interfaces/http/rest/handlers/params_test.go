package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestPathParamReadsChiVars(t *testing.T) {
	var got string
	router := chi.NewRouter()
	router.Get("/stories/{storyID}", func(w http.ResponseWriter, r *http.Request) {
		got = pathParam(r, "storyID")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stories/story-42", nil))

	assert.Equal(t, "story-42", got)
}

func TestPathParamReadsMuxVars(t *testing.T) {
	var got string
	router := mux.NewRouter()
	router.HandleFunc("/stories/{storyID}", func(w http.ResponseWriter, r *http.Request) {
		got = pathParam(r, "storyID")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stories/story-42", nil))

	assert.Equal(t, "story-42", got)
}

func TestPathParamMissingKeyIsEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/stories", nil)
	assert.Empty(t, pathParam(req, "storyID"))
}
