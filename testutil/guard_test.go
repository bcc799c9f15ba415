package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestBackendImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"examist/internal/catalog", true},
		{"examist/internal/catalog/sqlite", true},
		{"examist/internal/blob/s3", true},
		{"database/sql", true},
		{"github.com/jackc/pgx/v5/stdlib", true},
		{"examist/internal/core", false},
		{"examist/pkg/domain", false},
		{"github.com/hashicorp/golang-lru/v2", false},
	}
	for _, c := range cases {
		if got := BackendImportForbidden(c.in); got != c.want {
			t.Fatalf("BackendImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestInternalImportForbidden(t *testing.T) {
	if !InternalImportForbidden("examist/internal/core") {
		t.Fatalf("internal path not matched")
	}
	if InternalImportForbidden("examist/pkg/domain") {
		t.Fatalf("pkg path matched")
	}
}

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.go", "package tmp\nimport \"fmt\"\nfunc X() { fmt.Println(1) }\n")
	writeFile(t, dir, "bad.go", "package tmp\nimport _ \"examist/internal/blob\"\n")
	writeFile(t, dir, "bad_test.go", "package tmp\nimport _ \"database/sql\"\n")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	viols, err := directImportViolations(dir, BackendImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "bad.go") {
		t.Fatalf("violations = %v", viols)
	}

	AssertNoDirectImports(t, dir, func(string) bool { return false }, "nothing forbidden")
}

func TestDirectImportViolationsErrors(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), BackendImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
	dir := t.TempDir()
	writeFile(t, dir, "broken.go", "package tmp\nimport (\n")
	if _, err := directImportViolations(dir, BackendImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFailIf(t *testing.T) {
	var r recordingFatal
	failIf(&r, "forbidden direct imports", "none", nil)
	if r.msg != "" {
		t.Fatalf("unexpected failure %q", r.msg)
	}
	failIf(&r, "forbidden direct imports", "layering", []string{"a", "b"})
	if !strings.Contains(r.msg, "layering") || !strings.Contains(r.msg, "a\nb") {
		t.Fatalf("message = %q", r.msg)
	}
}

func TestAssertNoTransitiveDependencyParsesGoList(t *testing.T) {
	orig := goListDeps
	t.Cleanup(func() { goListDeps = orig })

	goListDeps = func(string) ([]byte, error) {
		return []byte("fmt\nexamist/pkg/domain\n\n"), nil
	}
	AssertNoTransitiveDependency(t, "./pkg/domain", BackendImportForbidden, "domain is backend free")

	goListDeps = func(string) ([]byte, error) { return []byte("boom"), errors.New("exit 1") }
	if _, err := goListDeps("."); err == nil {
		t.Fatalf("stub should fail")
	}
}
