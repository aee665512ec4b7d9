package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "polica.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse("polica", nil, func() {})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestParseFileThenFlags(t *testing.T) {
	path := writeConfig(t, `
db: /var/lib/polica.sqlite3
addr: ":9090"
limiter:
  enabled: true
  rps: 5
  burst: 10
batch:
  concurrency: 8
`)

	cfg, err := Parse("polica", []string{"-c", path, "-a", ":7070", "-batch-concurrency", "2"}, func() {})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.DB != "/var/lib/polica.sqlite3" {
		t.Errorf("expected db from file, got %q", cfg.DB)
	}
	if cfg.Addr != ":7070" {
		t.Errorf("expected flag to override addr, got %q", cfg.Addr)
	}
	if !cfg.Limiter.Enabled || cfg.Limiter.RPS != 5 || cfg.Limiter.Burst != 10 {
		t.Errorf("unexpected limiter: %+v", cfg.Limiter)
	}
	if cfg.Batch.Concurrency != 2 {
		t.Errorf("expected flag to override concurrency, got %d", cfg.Batch.Concurrency)
	}
	if cfg.AdminUser != "Admin" {
		t.Errorf("expected default admin user, got %q", cfg.AdminUser)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "port: 8080\n")

	_, err := Parse("polica", []string{"-config", path}, func() {})
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParseEmptyFile(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Parse("polica", []string{"-config", path}, func() {})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"empty db", []string{"-db", ""}, "db path"},
		{"limiter without rate", []string{"-limit", "-limit-rps", "0"}, "limiter"},
		{"negative concurrency", []string{"-batch-concurrency", "-1"}, "concurrency"},
		{"stray argument", []string{"serve"}, "unexpected argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("polica", tt.args, func() {})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
