package collector

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter() chi.Router {
	h := New(nil, nil, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		h.Mount(r)
	})
	return router
}

func TestHandleBatch_MissingAuthorizationHeader(t *testing.T) {
	router := newTestRouter()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/connections/batch", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHandleBatch_MalformedAuthorizationHeader(t *testing.T) {
	router := newTestRouter()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/connections/batch", strings.NewReader("{}"))
	r.Header.Set("Authorization", "Basic deadbeef")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHandleBatch_EmptyBearerToken(t *testing.T) {
	router := newTestRouter()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/connections/batch", strings.NewReader("{}"))
	r.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
