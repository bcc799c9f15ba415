// Package catalog defines the API handle the exam archive store talks to.
// Every method returns a JSON-shaped domain.Entity mirroring the examist REST
// API responses, so the store's producers can extract from any backend the
// same way.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"examist/pkg/domain"
)

// SearchLimit caps the number of courses SearchCourses returns.
const SearchLimit = 10

// PopularLimit caps the number of popular questions returned for a course.
const PopularLimit = 10

// Periods lists the sittings a paper can belong to.
var Periods = []string{"summer", "winter", "autumn", "spring"}

var (
	// ErrNotFound reports a missing course, paper, comment or document.
	ErrNotFound = errors.New("catalog: not found")
	// ErrUnauthorized reports a failed login or an unknown auth key.
	ErrUnauthorized = errors.New("catalog: unauthorized")
	// ErrInvalid reports malformed arguments such as an unknown period.
	ErrInvalid = errors.New("catalog: invalid argument")
)

// API is an authorized handle on the exam archive.
type API interface {
	// GetCourses returns {courses} for the signed-in user.
	GetCourses(ctx context.Context) (domain.Entity, error)
	// GetCourse returns {course} with the course's papers nested.
	GetCourse(ctx context.Context, code string) (domain.Entity, error)
	// GetPopular returns {course, popular_questions}.
	GetPopular(ctx context.Context, code string) (domain.Entity, error)
	// SearchCourses returns {courses} whose name or code contains query.
	SearchCourses(ctx context.Context, query string) (domain.Entity, error)
	// GetPaper returns {course, paper} with the paper's questions nested.
	GetPaper(ctx context.Context, code string, year int, period string) (domain.Entity, error)
	// GetComments returns {comments} attached to entity.
	GetComments(ctx context.Context, entity int64) (domain.Entity, error)
	// CreateComment returns {comment}. parent is zero for a top-level comment.
	CreateComment(ctx context.Context, entity int64, content string, parent int64) (domain.Entity, error)
	// DeleteComment soft-deletes a comment and returns {comment}.
	DeleteComment(ctx context.Context, entity, id int64) (domain.Entity, error)
	// GetPaperContents returns {document} describing the stored paper PDF.
	GetPaperContents(ctx context.Context, code string, year int, period string) (domain.Entity, error)
}

// Authenticator signs users in and hands out API handles.
type Authenticator interface {
	// Login returns {user, key}.
	Login(ctx context.Context, email, password string) (domain.Entity, error)
	// Connect returns the API handle authorized by key.
	Connect(ctx context.Context, key string) (API, error)
}

// NotFound wraps ErrNotFound with the missing resource.
func NotFound(kind string, ident any) error {
	return fmt.Errorf("%s %v: %w", kind, ident, ErrNotFound)
}

// NormalizePeriod lower-cases period and checks it names a sitting.
func NormalizePeriod(period string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(period))
	for _, known := range Periods {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("period %q: %w", period, ErrInvalid)
}

// NormalizeCode upper-cases a course code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
