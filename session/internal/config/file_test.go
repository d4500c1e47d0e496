package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
task: "log in to the portal"
browser:
  headless: true
  stealth: true
  action_timeout: 5s
allowlist:
  - example.com
  - intranet.local
secrets:
  - name: PASSWORD
    value: env:PORTAL_PASSWORD
    domains: [example.com]
output:
  dir: out
  dialects: [playwright-python, cypress]
control:
  addr: "127.0.0.1:8700"
archive: sessions.db
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Task != "log in to the portal" {
		t.Fatalf("task = %q", cfg.Task)
	}
	if cfg.Browser.ActionTimeout != 5*time.Second {
		t.Fatalf("timeout = %v", cfg.Browser.ActionTimeout)
	}
	if len(cfg.Allowlist) != 2 || len(cfg.Secrets) != 1 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Output.Dialects) != 2 {
		t.Fatalf("dialects = %v", cfg.Output.Dialects)
	}
}

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `allowlist: [example.com]`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Browser.ActionTimeout != 15*time.Second {
		t.Fatalf("timeout = %v", cfg.Browser.ActionTimeout)
	}
	if cfg.Output.Dir != "generated" {
		t.Fatalf("dir = %q", cfg.Output.Dir)
	}
	if len(cfg.Output.Dialects) != 1 || cfg.Output.Dialects[0] != "playwright-python" {
		t.Fatalf("dialects = %v", cfg.Output.Dialects)
	}
}

func TestLoadFileValidation(t *testing.T) {
	_, err := LoadFile(writeConfig(t, `
secrets:
  - name: TOKEN
    value: x
`))
	if err == nil {
		t.Fatal("domainless secret accepted")
	}

	_, err = LoadFile(writeConfig(t, `secrets: [{value: x, domains: [a.test]}]`))
	if err == nil {
		t.Fatal("nameless secret accepted")
	}
}

func TestResolveValue(t *testing.T) {
	s := SecretConfig{Name: "A", Value: "plain"}
	v, err := s.ResolveValue()
	if err != nil || v != "plain" {
		t.Fatalf("v=%q err=%v", v, err)
	}

	t.Setenv("T2B_TEST_SECRET", "from-env")
	s = SecretConfig{Name: "A", Value: "env:T2B_TEST_SECRET"}
	v, err = s.ResolveValue()
	if err != nil || v != "from-env" {
		t.Fatalf("v=%q err=%v", v, err)
	}

	s = SecretConfig{Name: "A", Value: "env:T2B_TEST_MISSING"}
	if _, err := s.ResolveValue(); err == nil {
		t.Fatal("missing env accepted")
	}
}
