package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticate(t *testing.T) {
	g := NewGuard(map[string]string{"ops": "s3cret", "empty": " "})
	cases := []struct {
		header string
		want   error
		name   string
	}{
		{header: "", want: ErrMissingToken},
		{header: "Basic abc", want: ErrMissingToken},
		{header: "Bearer ", want: ErrMissingToken},
		{header: "Bearer nope", want: ErrInvalidToken},
		{header: "Bearer s3cret", name: "ops"},
		{header: "bearer  s3cret ", name: "ops"},
	}
	for _, tc := range cases {
		subject, err := g.Authenticate(tc.header)
		if err != tc.want {
			t.Fatalf("%q: expected %v, got %v", tc.header, tc.want, err)
		}
		if tc.want == nil && subject.Name != tc.name {
			t.Fatalf("%q: unexpected subject %+v", tc.header, subject)
		}
	}
}

func TestMiddleware(t *testing.T) {
	var seen *Subject
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	})
	h := NewGuard(map[string]string{"ops": "s3cret"}).Middleware(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/turns", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected challenge header")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/turns", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted || seen == nil || seen.Name != "ops" {
		t.Fatalf("unexpected result %d %+v", rec.Code, seen)
	}
}

func TestDisabledGuardPassesThrough(t *testing.T) {
	h := NewGuard(nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected pass through, got %d", rec.Code)
	}
}
