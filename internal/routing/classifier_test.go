package routing

import "testing"

func testAllowlist(t *testing.T) Allowlist {
	t.Helper()
	a, err := ParseAllowlistYAML([]byte(`
version: 1
entrypoints:
  server:
    routes:
      - path: /api/entries
        methods: [POST]
        route_class: internal_api
      - path: /api/branches/{id}
        methods: [GET]
        route_class: internal_api
      - path: /healthz
        methods: [GET]
        route_class: ops
`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	return a
}

func TestNewClassifier_MissingEntrypoint(t *testing.T) {
	a := testAllowlist(t)
	if _, err := NewClassifier(a, "worker"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewClassifier_EmptyRoutes(t *testing.T) {
	a := Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{"server": {}}}
	if _, err := NewClassifier(a, "server"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewClassifier_InvalidRoute(t *testing.T) {
	a := Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{"server": {Routes: []Route{{Path: "", RouteClass: "ui"}}}}}
	if _, err := NewClassifier(a, "server"); err == nil {
		t.Fatal("expected error")
	}
}

func TestClassify_ExactAndPattern(t *testing.T) {
	c, err := NewClassifier(testAllowlist(t), "server")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if rc := c.Classify("/api/entries"); rc != RouteClassInternalAPI {
		t.Fatalf("rc=%q", rc)
	}
	if rc := c.Classify("/api/branches/b-123"); rc != RouteClassInternalAPI {
		t.Fatalf("rc=%q", rc)
	}
	if rc := c.Classify("/healthz"); rc != RouteClassOps {
		t.Fatalf("rc=%q", rc)
	}
}

func TestClassify_Fallbacks(t *testing.T) {
	c, err := NewClassifier(testAllowlist(t), "server")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	cases := map[string]RouteClass{
		"/api/anything":   RouteClassInternalAPI,
		"/webhooks/pay":   RouteClassWebhook,
		"/health":         RouteClassOps,
		"/assets/app.css": RouteClassStatic,
		"/static/x.js":    RouteClassStatic,
		"/groves":         RouteClassUI,
	}
	for path, want := range cases {
		if got := c.Classify(path); got != want {
			t.Fatalf("path=%q got=%q want=%q", path, got, want)
		}
	}
}
