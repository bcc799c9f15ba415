package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"examist/internal/catalog"
	"examist/internal/catalog/catalogtest"
	"examist/internal/catalog/memory"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	backend := memory.New(catalog.Demo(), memory.WithDocuments(catalogtest.Documents(t)))
	srv := httptest.NewServer(NewHandler(backend, WithServiceName("examist-test")))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(url, 5*time.Second, WithHTTPClient(http.DefaultClient))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestClientContract(t *testing.T) {
	srv := newServer(t)
	catalogtest.Run(t, newClient(t, srv.URL))
}

func TestNewValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.ie", "://bad", "example.ie"} {
		if _, err := New(raw, time.Second); err == nil {
			t.Fatalf("New(%q) accepted", raw)
		}
	}
	c, err := New("https://api.examist.ie/v1/", time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.base.Path != "/v1" {
		t.Fatalf("base path = %q", c.base.Path)
	}
}

func TestHTTPErrorCarriesMessage(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.URL)
	_, err := c.Login(context.Background(), "demo@examist.ie", "nope")
	var herr *HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("err = %T %v, want *HTTPError", err, err)
	}
	if herr.Status != http.StatusUnauthorized || herr.Message == "" || herr.Body["message"] != herr.Message {
		t.Fatalf("HTTPError = %+v", herr)
	}
	if !errors.Is(err, catalog.ErrUnauthorized) {
		t.Fatalf("401 does not unwrap to ErrUnauthorized")
	}
}

func TestHTTPErrorUnwrap(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, catalog.ErrNotFound},
		{http.StatusUnauthorized, catalog.ErrUnauthorized},
		{http.StatusForbidden, catalog.ErrUnauthorized},
		{http.StatusBadRequest, catalog.ErrInvalid},
		{http.StatusTeapot, nil},
	}
	for _, c := range cases {
		err := &HTTPError{Status: c.status, Message: "x"}
		if got := err.Unwrap(); got != c.want {
			t.Fatalf("Unwrap(%d) = %v, want %v", c.status, got, c.want)
		}
	}
	if got := (&HTTPError{Status: 500, Message: "boom"}).Error(); got != "500: boom" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestInvalidResponses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})
	mux.HandleFunc("/auth", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := newClient(t, srv.URL)

	if _, err := c.Login(context.Background(), "a@b.ie", "pw"); !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("html body err = %v, want ErrInvalidResponse", err)
	}
	_, err := c.Connect(context.Background(), "key")
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.Status != http.StatusBadGateway || herr.Message != http.StatusText(http.StatusBadGateway) {
		t.Fatalf("empty error body err = %v", err)
	}
	if _, err := c.Connect(context.Background(), ""); !errors.Is(err, catalog.ErrUnauthorized) {
		t.Fatalf("empty key err = %v", err)
	}
}

func TestServerRejectsMalformedRequests(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.URL)
	out, err := c.Login(context.Background(), "demo@examist.ie", catalog.DemoPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	key := out["key"].(string)

	for _, path := range []string{"/comments/abc", "/course/CT101/paper/twenty/summer"} {
		_, err := c.do(context.Background(), http.MethodGet, path, key, nil)
		var herr *HTTPError
		if !errors.As(err, &herr) || herr.Status != http.StatusBadRequest {
			t.Fatalf("GET %s err = %v, want 400", path, err)
		}
	}
	if _, err := c.do(context.Background(), http.MethodGet, "/profile/courses", "", nil); !errors.Is(err, catalog.ErrUnauthorized) {
		t.Fatalf("missing key err = %v", err)
	}
}
