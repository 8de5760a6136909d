package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveWithSecurityHeaders(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	h := WithSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSecurityHeadersOnAPIResponses(t *testing.T) {
	rec := serveWithSecurityHeaders(t, httptest.NewRequest(http.MethodGet, "/api/files", nil))

	for name, want := range apiHeaders {
		if got := rec.Header().Get(name); got != want {
			t.Fatalf("%s = %q, want %q", name, got, want)
		}
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("HSTS set on plain http request: %q", got)
	}
}

func TestSecurityHeadersHSTS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	rec := serveWithSecurityHeaders(t, req)

	if got := rec.Header().Get("Strict-Transport-Security"); got == "" {
		t.Fatalf("HSTS missing on gateway-terminated https request")
	}
}
