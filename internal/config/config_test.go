package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "examist.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
catalog:
  driver: sqlite
  sqlite_path: /tmp/examist.db
  timeout: 3s
blob:
  driver: s3
  s3_bucket: papers
store:
  metrics: prometheus
`)
	t.Setenv("EXAMIST_BLOB_S3_BUCKET", "override")
	t.Setenv("EXAMIST_CATALOG_TIMEOUT", "750ms")
	t.Setenv("EXAMIST_BLOB_S3_PATH_STYLE", "true")
	t.Setenv("EXAMIST_STORE_MEMO_SIZE", "16")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("yaml log settings lost: %+v", cfg.Log)
	}
	if cfg.Catalog.Driver != "sqlite" || cfg.Catalog.SQLitePath != "/tmp/examist.db" {
		t.Fatalf("yaml catalog settings lost: %+v", cfg.Catalog)
	}
	if cfg.Catalog.Timeout != 750*time.Millisecond {
		t.Fatalf("env timeout not applied: %v", cfg.Catalog.Timeout)
	}
	if cfg.Blob.S3Bucket != "override" || !cfg.Blob.S3PathStyle {
		t.Fatalf("env blob settings not applied: %+v", cfg.Blob)
	}
	if cfg.Blob.S3Region != "us-east-1" {
		t.Fatalf("defaults should survive a partial yaml file: %q", cfg.Blob.S3Region)
	}
	if cfg.Store.Metrics != "prometheus" || cfg.Store.MemoSize != 16 {
		t.Fatalf("store settings: %+v", cfg.Store)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		env  map[string]string
		tag  string
	}{
		{name: "unknown driver", yaml: "catalog:\n  driver: mongo\n", tag: "oneof"},
		{name: "sqlite without path", yaml: "catalog:\n  driver: sqlite\n", tag: "required_if"},
		{name: "http without url", env: map[string]string{"EXAMIST_CATALOG_DRIVER": "http"}, tag: "required_if"},
		{name: "bad url", yaml: "catalog:\n  driver: http\n  base_url: not a url\n", tag: "url"},
		{name: "s3 without bucket", yaml: "blob:\n  driver: s3\n", tag: "required_if"},
		{name: "email without password", env: map[string]string{"EXAMIST_AUTH_EMAIL": "a@b.ie"}, tag: "required_with"},
		{name: "zero memo", env: map[string]string{"EXAMIST_STORE_MEMO_SIZE": "0"}, tag: "min"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.yaml != "" {
				path = writeConfig(t, tc.yaml)
			}
			_, err := Load(path)
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected validation errors, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.tag) {
				t.Fatalf("expected %q violation, got %v", tc.tag, err)
			}
		})
	}
}

func TestLoadParseErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected missing file error, got %v", err)
	}
	if _, err := Load(writeConfig(t, "log: [")); err == nil {
		t.Fatalf("expected yaml error")
	}
	t.Setenv("EXAMIST_CATALOG_TIMEOUT", "soon")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "EXAMIST_CATALOG_TIMEOUT") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestApplyEnvBool(t *testing.T) {
	cfg := Default()
	env := map[string]string{"EXAMIST_CATALOG_SEED": "nope"}
	err := applyEnv(&cfg, func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	if err == nil {
		t.Fatalf("expected bool parse error")
	}
	env["EXAMIST_CATALOG_SEED"] = "false"
	if err := applyEnv(&cfg, func(k string) (string, bool) { v, ok := env[k]; return v, ok }); err != nil || cfg.Catalog.Seed {
		t.Fatalf("seed override: %v %v", err, cfg.Catalog.Seed)
	}
}
