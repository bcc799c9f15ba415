// Package memory serves the exam archive from an in-process dataset.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"examist/internal/catalog"
	"examist/pkg/domain"
)

// Catalog is an Authenticator over a mutable copy of a dataset.
type Catalog struct {
	mu       sync.RWMutex
	data     catalog.Dataset
	sessions map[string]int64
	nextID   int64
	docs     catalog.Documents
	now      func() time.Time
}

var _ catalog.Authenticator = (*Catalog)(nil)

// Option configures a Catalog.
type Option func(*Catalog)

// WithDocuments serves paper contents from docs.
func WithDocuments(docs catalog.Documents) Option {
	return func(c *Catalog) { c.docs = docs }
}

// WithClock stamps new comments with now.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// New copies ds into a new catalog.
func New(ds catalog.Dataset, opts ...Option) *Catalog {
	c := &Catalog{
		data: catalog.Dataset{
			Courses:   append([]catalog.Course(nil), ds.Courses...),
			Papers:    append([]catalog.Paper(nil), ds.Papers...),
			Questions: append([]catalog.Question(nil), ds.Questions...),
			Comments:  append([]catalog.Comment(nil), ds.Comments...),
			Users:     append([]catalog.User(nil), ds.Users...),
		},
		sessions: make(map[string]int64),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, q := range c.data.Questions {
		c.nextID = max(c.nextID, q.ID)
	}
	for _, cm := range c.data.Comments {
		c.nextID = max(c.nextID, cm.ID)
	}
	return c
}

// Login checks the password and opens a session.
func (c *Catalog) Login(_ context.Context, email, password string) (domain.Entity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range c.data.Users {
		if strings.EqualFold(u.Email, email) && catalog.CheckPassword(u.PasswordHash, password) {
			key := uuid.NewString()
			c.sessions[key] = u.ID
			return domain.Entity{"user": u.Entity(), "key": key}, nil
		}
	}
	return nil, fmt.Errorf("login %s: %w", email, catalog.ErrUnauthorized)
}

// Connect returns the handle for an open session.
func (c *Catalog) Connect(_ context.Context, key string) (catalog.API, error) {
	c.mu.RLock()
	user, ok := c.sessions[key]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("connect: %w", catalog.ErrUnauthorized)
	}
	return &handle{c: c, user: user}, nil
}

type handle struct {
	c    *Catalog
	user int64
}

func (h *handle) GetCourses(context.Context) (domain.Entity, error) {
	h.c.mu.RLock()
	defer h.c.mu.RUnlock()
	var mine []catalog.Course
	for _, u := range h.c.data.Users {
		if u.ID != h.user {
			continue
		}
		for _, id := range u.Courses {
			if course, ok := h.c.courseByID(id); ok {
				mine = append(mine, course)
			}
		}
	}
	return domain.Entity{"courses": catalog.Entities(mine)}, nil
}

func (h *handle) GetCourse(_ context.Context, code string) (domain.Entity, error) {
	h.c.mu.RLock()
	defer h.c.mu.RUnlock()
	course, err := h.c.courseByCode(code)
	if err != nil {
		return nil, err
	}
	return catalog.CourseWithPapers(course, h.c.papersOf(course.ID)), nil
}

func (h *handle) GetPopular(_ context.Context, code string) (domain.Entity, error) {
	h.c.mu.RLock()
	defer h.c.mu.RUnlock()
	course, err := h.c.courseByCode(code)
	if err != nil {
		return nil, err
	}
	papers := make(map[int64]bool)
	for _, p := range h.c.papersOf(course.ID) {
		papers[p.ID] = true
	}
	counts := make(map[int64]int)
	for _, cm := range h.c.data.Comments {
		if !cm.Deleted {
			counts[cm.EntityID]++
		}
	}
	var popular []catalog.PopularQuestion
	for _, q := range h.c.data.Questions {
		if papers[q.PaperID] && counts[q.ID] > 0 {
			popular = append(popular, catalog.PopularQuestion{Question: q, Comments: counts[q.ID]})
		}
	}
	return catalog.Popular(course, popular), nil
}

func (h *handle) SearchCourses(_ context.Context, query string) (domain.Entity, error) {
	q := strings.ToLower(strings.ReplaceAll(query, "+", " "))
	h.c.mu.RLock()
	defer h.c.mu.RUnlock()
	var found []catalog.Course
	for _, c := range h.c.data.Courses {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Code), q) {
			found = append(found, c)
			if len(found) == catalog.SearchLimit {
				break
			}
		}
	}
	return domain.Entity{"courses": catalog.Entities(found)}, nil
}

func (h *handle) GetPaper(_ context.Context, code string, year int, period string) (domain.Entity, error) {
	p, err := catalog.NormalizePeriod(period)
	if err != nil {
		return nil, err
	}
	h.c.mu.RLock()
	defer h.c.mu.RUnlock()
	course, err := h.c.courseByCode(code)
	if err != nil {
		return nil, err
	}
	for _, paper := range h.c.papersOf(course.ID) {
		if paper.YearStart == year && paper.Period == p {
			var questions []catalog.Question
			for _, q := range h.c.data.Questions {
				if q.PaperID == paper.ID {
					questions = append(questions, q)
				}
			}
			return catalog.PaperWithQuestions(course, paper, questions), nil
		}
	}
	return nil, catalog.NotFound("paper", fmt.Sprintf("%s/%d/%s", course.Code, year, p))
}

func (h *handle) GetComments(_ context.Context, entity int64) (domain.Entity, error) {
	h.c.mu.RLock()
	defer h.c.mu.RUnlock()
	var comments []catalog.Comment
	for _, cm := range h.c.data.Comments {
		if cm.EntityID == entity {
			comments = append(comments, cm)
		}
	}
	return domain.Entity{"comments": catalog.Entities(comments)}, nil
}

func (h *handle) CreateComment(_ context.Context, entity int64, content string, parent int64) (domain.Entity, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("comment content: %w", catalog.ErrInvalid)
	}
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	if !h.c.entityExists(entity) {
		return nil, catalog.NotFound("entity", entity)
	}
	if parent != 0 {
		if _, ok := h.c.commentIndex(entity, parent); !ok {
			return nil, catalog.NotFound("comment", parent)
		}
	}
	h.c.nextID++
	cm := catalog.Comment{
		ID:        h.c.nextID,
		EntityID:  entity,
		UserID:    h.user,
		ParentID:  parent,
		Content:   content,
		CreatedAt: h.c.now().UTC(),
	}
	h.c.data.Comments = append(h.c.data.Comments, cm)
	return domain.Entity{"comment": cm.Entity()}, nil
}

func (h *handle) DeleteComment(_ context.Context, entity, id int64) (domain.Entity, error) {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	i, ok := h.c.commentIndex(entity, id)
	if !ok {
		return nil, catalog.NotFound("comment", id)
	}
	h.c.data.Comments[i].Deleted = true
	return domain.Entity{"comment": h.c.data.Comments[i].Entity()}, nil
}

func (h *handle) GetPaperContents(ctx context.Context, code string, year int, period string) (domain.Entity, error) {
	out, err := h.GetPaper(ctx, code, year, period)
	if err != nil {
		return nil, err
	}
	paper, _ := out["paper"].(domain.Entity)
	id, _ := paper["id"].(int64)
	return h.c.docs.Describe(ctx, id, catalog.NormalizeCode(code), year, strings.ToLower(period))
}

func (c *Catalog) courseByCode(code string) (catalog.Course, error) {
	code = catalog.NormalizeCode(code)
	for _, course := range c.data.Courses {
		if course.Code == code {
			return course, nil
		}
	}
	return catalog.Course{}, catalog.NotFound("course", code)
}

func (c *Catalog) courseByID(id int64) (catalog.Course, bool) {
	for _, course := range c.data.Courses {
		if course.ID == id {
			return course, true
		}
	}
	return catalog.Course{}, false
}

func (c *Catalog) papersOf(course int64) []catalog.Paper {
	var out []catalog.Paper
	for _, p := range c.data.Papers {
		if p.CourseID == course {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) entityExists(id int64) bool {
	for _, q := range c.data.Questions {
		if q.ID == id {
			return true
		}
	}
	_, ok := c.commentByID(id)
	return ok
}

func (c *Catalog) commentByID(id int64) (catalog.Comment, bool) {
	for _, cm := range c.data.Comments {
		if cm.ID == id {
			return cm, true
		}
	}
	return catalog.Comment{}, false
}

func (c *Catalog) commentIndex(entity, id int64) (int, bool) {
	for i, cm := range c.data.Comments {
		if cm.ID == id && cm.EntityID == entity {
			return i, true
		}
	}
	return 0, false
}
