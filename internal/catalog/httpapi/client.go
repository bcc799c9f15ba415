// Package httpapi talks to the examist REST API. Client is a
// catalog.Authenticator over HTTP; NewHandler serves any Authenticator with
// the same routes.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"examist/internal/catalog"
	"examist/pkg/domain"
)

// AuthHeader carries the session key on authorized requests.
const AuthHeader = "Auth-Key"

// ErrInvalidResponse reports a body that is not a JSON object.
var ErrInvalidResponse = errors.New("httpapi: invalid JSON response")

// HTTPError is a response with status >= 400. Message comes from the body's
// message field.
type HTTPError struct {
	Status  int
	Message string
	Body    domain.Entity
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses onto the catalog sentinels.
func (e *HTTPError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return catalog.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return catalog.ErrUnauthorized
	case http.StatusBadRequest:
		return catalog.ErrInvalid
	default:
		return nil
	}
}

// Client is a catalog.Authenticator backed by the REST API at a base URL.
type Client struct {
	base *url.URL
	http *http.Client
}

var _ catalog.Authenticator = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New returns a client for baseURL. Requests time out after timeout.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Login posts the credentials and returns {user, key}.
func (c *Client) Login(ctx context.Context, email, password string) (domain.Entity, error) {
	return c.do(ctx, http.MethodPost, "/login", "", map[string]string{"email": email, "password": password})
}

// Connect checks key against /auth and returns a handle sending it.
func (c *Client) Connect(ctx context.Context, key string) (catalog.API, error) {
	if key == "" {
		return nil, fmt.Errorf("connect: empty key: %w", catalog.ErrUnauthorized)
	}
	if _, err := c.do(ctx, http.MethodGet, "/auth", key, nil); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &api{c: c, key: key}, nil
}

func (c *Client) do(ctx context.Context, method, path, key string, body any) (domain.Entity, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}
	target, err := c.base.Parse(c.base.Path + path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if key != "" {
		req.Header.Set(AuthHeader, key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, decodeErr := decode(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		herr := &HTTPError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Body: payload}
		if msg := payload.String("message"); msg != "" {
			herr.Message = msg
		}
		return nil, herr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, decodeErr)
	}
	return payload, nil
}

func decode(r io.Reader) (domain.Entity, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if raw == nil {
		return nil, ErrInvalidResponse
	}
	return domain.NormalizeEntity(raw), nil
}

type api struct {
	c   *Client
	key string
}

func (a *api) get(ctx context.Context, path string) (domain.Entity, error) {
	return a.c.do(ctx, http.MethodGet, path, a.key, nil)
}

func (a *api) GetCourses(ctx context.Context) (domain.Entity, error) {
	return a.get(ctx, "/profile/courses")
}

func (a *api) GetCourse(ctx context.Context, code string) (domain.Entity, error) {
	return a.get(ctx, "/course/"+url.PathEscape(code))
}

func (a *api) GetPopular(ctx context.Context, code string) (domain.Entity, error) {
	return a.get(ctx, "/course/"+url.PathEscape(code)+"/popular")
}

func (a *api) SearchCourses(ctx context.Context, query string) (domain.Entity, error) {
	return a.get(ctx, "/course/search?q="+url.QueryEscape(query))
}

func (a *api) GetPaper(ctx context.Context, code string, year int, period string) (domain.Entity, error) {
	return a.get(ctx, paperPath(code, year, period))
}

func (a *api) GetComments(ctx context.Context, entity int64) (domain.Entity, error) {
	return a.get(ctx, "/comments/"+strconv.FormatInt(entity, 10))
}

func (a *api) CreateComment(ctx context.Context, entity int64, content string, parent int64) (domain.Entity, error) {
	body := map[string]any{"content": content, "parent": nil}
	if parent != 0 {
		body["parent"] = parent
	}
	return a.c.do(ctx, http.MethodPost, "/comment/"+strconv.FormatInt(entity, 10), a.key, body)
}

func (a *api) DeleteComment(ctx context.Context, entity, id int64) (domain.Entity, error) {
	path := fmt.Sprintf("/comment/%d/%d", entity, id)
	return a.c.do(ctx, http.MethodDelete, path, a.key, nil)
}

func (a *api) GetPaperContents(ctx context.Context, code string, year int, period string) (domain.Entity, error) {
	return a.get(ctx, paperPath(code, year, period)+"/document")
}

func paperPath(code string, year int, period string) string {
	return fmt.Sprintf("/course/%s/paper/%d/%s", url.PathEscape(code), year, url.PathEscape(period))
}
