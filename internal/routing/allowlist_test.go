package routing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseAllowlistYAML_Errors(t *testing.T) {
	if _, err := ParseAllowlistYAML([]byte("{bad")); err == nil {
		t.Fatal("expected yaml error")
	}
	if _, err := ParseAllowlistYAML([]byte("version: 2\nentrypoints: {}")); err == nil {
		t.Fatal("expected version error")
	}
	if _, err := ParseAllowlistYAML([]byte("version: 1")); err == nil {
		t.Fatal("expected missing entrypoints error")
	}
}

func TestLoadAllowlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "allowlist.yaml")
	if err := os.WriteFile(path, []byte("version: 1\nentrypoints:\n  server:\n    routes:\n      - path: /healthz\n        route_class: ops\n"), 0o600); err != nil {
		t.Fatalf("err=%v", err)
	}
	a, err := LoadAllowlist(path)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(a.Entrypoints["server"].Routes) != 1 {
		t.Fatalf("routes=%d", len(a.Entrypoints["server"].Routes))
	}

	if _, err := LoadAllowlist(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}
