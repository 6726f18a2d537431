package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mrpoffice-collab/FireflyGrove-sub005/internal/routing"
)

func testClassifier(t *testing.T) *routing.Classifier {
	t.Helper()
	a, err := routing.ParseAllowlistYAML([]byte(`
version: 1
entrypoints:
  server:
    routes:
      - path: /healthz
        methods: [GET]
        route_class: ops
`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	c, err := routing.NewClassifier(a, "server")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	return c
}

func TestActorFromHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/branches", nil)
	if _, ok := actorFromHeaders(r); ok {
		t.Fatal("expected no actor")
	}

	r.Header.Set("X-Actor-ID", "u1")
	a, ok := actorFromHeaders(r)
	if !ok || a.ID != "u1" || a.Admin {
		t.Fatalf("actor=%+v ok=%v", a, ok)
	}

	r.Header.Set("X-Actor-Admin", "1")
	a, _ = actorFromHeaders(r)
	if !a.Admin {
		t.Fatalf("actor=%+v", a)
	}
}

func TestWithActorFromHeadersRejectsAnonymousAPI(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := withActorFromHeaders(testClassifier(t), next)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/branches", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code=%d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d", w.Code)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/branches", nil)
	r.Header.Set("X-Actor-ID", "u1")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d", w.Code)
	}
}

func TestActorRidesContext(t *testing.T) {
	var got Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = currentActor(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := withActorFromHeaders(testClassifier(t), next)

	r := httptest.NewRequest(http.MethodPost, "/api/entries", nil)
	r.Header.Set("X-Actor-ID", "u9")
	r.Header.Set("X-Actor-Admin", "1")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if got.ID != "u9" || !got.Admin {
		t.Fatalf("actor=%+v", got)
	}
}
