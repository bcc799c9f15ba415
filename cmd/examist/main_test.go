package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"examist/internal/catalog"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// demoEnv points the CLI at the seeded in-memory archive as the demo user.
func demoEnv(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"EXAMIST_CATALOG_DRIVER": "memory",
		"EXAMIST_CATALOG_SEED":   "true",
		"EXAMIST_BLOB_DRIVER":    "memory",
		"EXAMIST_STORE_METRICS":  "none",
		"EXAMIST_LOG_LEVEL":      "warn",
		"EXAMIST_AUTH_KEY":       "",
		"EXAMIST_AUTH_EMAIL":     "demo@examist.ie",
		"EXAMIST_AUTH_PASSWORD":  catalog.DemoPassword,
	} {
		t.Setenv(k, v)
	}
}

func sqliteEnv(t *testing.T) {
	t.Helper()
	demoEnv(t)
	t.Setenv("EXAMIST_CATALOG_DRIVER", "sqlite")
	t.Setenv("EXAMIST_CATALOG_SQLITE_PATH", filepath.Join(t.TempDir(), "examist.db"))
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := execute(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\nstderr: %s", args, err, errOut)
	}
	return out
}

func TestCoursesText(t *testing.T) {
	demoEnv(t)
	out := mustExecute(t, "courses")
	if !strings.Contains(out, "CT101") || !strings.Contains(out, "Calculus") {
		t.Fatalf("output = %q", out)
	}
	if strings.Contains(out, "CT470") {
		t.Fatalf("listed a course the user does not take: %q", out)
	}
}

func TestCoursesJSON(t *testing.T) {
	demoEnv(t)
	out := mustExecute(t, "courses", "-o", "json")
	var courses []map[string]any
	if err := json.Unmarshal([]byte(out), &courses); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(courses) != 2 || courses[0]["code"] != "CT101" || courses[1]["code"] != "MA100" {
		t.Fatalf("courses = %v", courses)
	}
}

func TestSearch(t *testing.T) {
	demoEnv(t)
	out := mustExecute(t, "search", "ct")
	if !strings.Contains(out, "CT101") || !strings.Contains(out, "CT470") || strings.Contains(out, "MA100") {
		t.Fatalf("output = %q", out)
	}
	if out := mustExecute(t, "search", "zzz"); !strings.Contains(out, `no courses match "zzz"`) {
		t.Fatalf("empty search output = %q", out)
	}
}

func TestCourseShowsPapersAndPopular(t *testing.T) {
	demoEnv(t)
	out := mustExecute(t, "course", "ct101")
	for _, want := range []string{"Computing Systems", "papers (3)", "popular questions (2)", "Describe the fetch-execute cycle.", "2 comments"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output lacks %q:\n%s", want, out)
		}
	}

	out = mustExecute(t, "course", "CT101", "-o", "json")
	var got struct {
		Course  map[string]any   `json:"course"`
		Popular []map[string]any `json:"popular_questions"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	papers, _ := got.Course["papers"].([]any)
	if len(papers) != 3 || len(got.Popular) != 2 {
		t.Fatalf("course = %v popular = %v", got.Course, got.Popular)
	}

	if _, _, err := execute(t, "course", "XX999"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("missing course err = %v", err)
	}
}

func TestPaperWithContents(t *testing.T) {
	demoEnv(t)
	out := mustExecute(t, "paper", "ct101", "2014", "Summer", "--contents")
	for _, want := range []string{"CT101/2014/summer", "papers/CT101/2014/summer.pdf", "Q1.1", "Convert 173 to binary"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output lacks %q:\n%s", want, out)
		}
	}
	if _, _, err := execute(t, "paper", "CT101", "twenty", "summer"); !errors.Is(err, catalog.ErrInvalid) {
		t.Fatalf("bad year err = %v", err)
	}
	if _, _, err := execute(t, "paper", "CT101", "2014", "fall"); !errors.Is(err, catalog.ErrInvalid) {
		t.Fatalf("bad period err = %v", err)
	}
}

func TestCommentLifecycleAcrossRuns(t *testing.T) {
	sqliteEnv(t)
	out := mustExecute(t, "comment", "100", "Same here.", "--parent", "1001")
	if !strings.Contains(out, "#1003") || !strings.Contains(out, "re #1001") {
		t.Fatalf("create output = %q", out)
	}

	out = mustExecute(t, "comments", "100", "-o", "json")
	var comments []map[string]any
	if err := json.Unmarshal([]byte(out), &comments); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("comments = %v", comments)
	}

	if out := mustExecute(t, "delete-comment", "100", "1003"); !strings.Contains(out, "deleted comment #1003") {
		t.Fatalf("delete output = %q", out)
	}
	if out := mustExecute(t, "comments", "100"); !strings.Contains(out, "[deleted]") {
		t.Fatalf("deleted comment still shown: %q", out)
	}

	if _, _, err := execute(t, "comments", "abc"); !errors.Is(err, catalog.ErrInvalid) {
		t.Fatalf("bad entity err = %v", err)
	}
	if _, _, err := execute(t, "comment", "100", "  "); !errors.Is(err, catalog.ErrInvalid) {
		t.Fatalf("blank comment err = %v", err)
	}
}

func TestLoginThenResumeWithKey(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("EXAMIST_AUTH_EMAIL", "")
	t.Setenv("EXAMIST_AUTH_PASSWORD", "")

	out := mustExecute(t, "login", "--email", "demo@examist.ie", "--password", catalog.DemoPassword, "-o", "json")
	var session struct {
		User map[string]any `json:"user"`
		Key  string         `json:"key"`
	}
	if err := json.Unmarshal([]byte(out), &session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session.Key == "" || session.User["email"] != "demo@examist.ie" {
		t.Fatalf("session = %+v", session)
	}

	t.Setenv("EXAMIST_AUTH_KEY", session.Key)
	if out := mustExecute(t, "courses"); !strings.Contains(out, "CT101") {
		t.Fatalf("courses with key = %q", out)
	}
}

func TestSignInFailures(t *testing.T) {
	demoEnv(t)
	t.Setenv("EXAMIST_AUTH_PASSWORD", "wrong")
	if _, _, err := execute(t, "courses"); !errors.Is(err, catalog.ErrUnauthorized) {
		t.Fatalf("wrong password err = %v", err)
	}

	t.Setenv("EXAMIST_AUTH_EMAIL", "")
	t.Setenv("EXAMIST_AUTH_PASSWORD", "")
	if _, _, err := execute(t, "courses"); !errors.Is(err, errNoCredentials) {
		t.Fatalf("no credentials err = %v", err)
	}
}

func TestSetupErrors(t *testing.T) {
	demoEnv(t)
	if _, _, err := execute(t, "courses", "-o", "xml"); err == nil || !strings.Contains(err.Error(), "xml") {
		t.Fatalf("bad output err = %v", err)
	}
	if _, _, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "courses"); err == nil {
		t.Fatalf("missing config file accepted")
	}
	t.Setenv("EXAMIST_CATALOG_DRIVER", "oracle")
	if _, _, err := execute(t, "courses"); err == nil {
		t.Fatalf("unknown driver accepted")
	}
}

func TestConfigFile(t *testing.T) {
	demoEnv(t)
	path := filepath.Join(t.TempDir(), "examist.yaml")
	yaml := "log:\n  level: error\n  format: json\nstore:\n  memo_size: 4\n  metrics: none\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if out := mustExecute(t, "--config", path, "courses"); !strings.Contains(out, "MA100") {
		t.Fatalf("output = %q", out)
	}
}

func TestMetricsDump(t *testing.T) {
	demoEnv(t)
	t.Setenv("EXAMIST_STORE_METRICS", "prometheus")
	_, errOut, err := execute(t, "--metrics", "courses")
	if err != nil {
		t.Fatalf("courses: %v", err)
	}
	if !strings.Contains(errOut, "examist_store_actions_total") {
		t.Fatalf("prometheus dump = %q", errOut)
	}

	t.Setenv("EXAMIST_STORE_METRICS", "expvar")
	_, errOut, err = execute(t, "--metrics", "courses")
	if err != nil {
		t.Fatalf("courses: %v", err)
	}
	if !strings.Contains(errOut, "outcomes_total") || !strings.Contains(errOut, "GET_COURSES") {
		t.Fatalf("expvar dump = %q", errOut)
	}

	t.Setenv("EXAMIST_STORE_METRICS", "none")
	if _, errOut, _ := execute(t, "--metrics", "courses"); !strings.Contains(errOut, "metrics are off") {
		t.Fatalf("disabled dump = %q", errOut)
	}
}

func TestHandlerServesAPIAndMetrics(t *testing.T) {
	demoEnv(t)
	t.Setenv("EXAMIST_STORE_METRICS", "prometheus")
	c := &cli{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, output: "text"}
	if err := c.setup(context.Background()); err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() { _ = c.close() })
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/profile/courses")
	if err != nil {
		t.Fatalf("courses: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthorized status = %d", resp.StatusCode)
	}
}

func TestServeStopsWithContext(t *testing.T) {
	demoEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	if err := run(ctx, []string{"serve", "--addr", "127.0.0.1:0"}, &stdout, &stderr); err != nil {
		t.Fatalf("serve: %v", err)
	}
}

func TestFormatPath(t *testing.T) {
	if got := formatPath([]any{int64(1), int64(2)}); got != "1.2" {
		t.Fatalf("formatPath = %q", got)
	}
	if got := formatPath(nil); got != "" {
		t.Fatalf("formatPath(nil) = %q", got)
	}
}
