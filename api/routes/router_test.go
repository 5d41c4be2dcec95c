package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/balcaopos/balcao-backend/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: "test-secret", Issuer: "balcao-test", ExpirationMinutes: 60},
	}
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := NewRouter(Deps{Config: testConfig()})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-Balcao-Env"); got != "test" {
		t.Fatalf("unexpected env header %q", got)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router := NewRouter(Deps{Config: testConfig()})

	paths := []string{
		"/api/v1/items",
		"/api/v1/quota",
		"/api/admin/v1/audit",
		"/api/admin/v1/users",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, w.Code)
		}
	}
}
