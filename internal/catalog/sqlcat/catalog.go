// Package sqlcat serves the exam archive from a database/sql connection. The
// sqlite and postgres packages open the connection and pick the dialect.
package sqlcat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"examist/internal/catalog"
	"examist/pkg/domain"
)

// Catalog is an Authenticator backed by SQL tables created with Migrate.
type Catalog struct {
	db      *sql.DB
	dialect Dialect
	docs    catalog.Documents
	now     func() time.Time
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

// New wraps an open database. Call Migrate first.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Catalog {
	c := &Catalog{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DB exposes the underlying handle.
func (c *Catalog) DB() *sql.DB { return c.db }

// Close closes the database.
func (c *Catalog) Close() error { return c.db.Close() }

// Seed inserts ds, skipping rows whose id already exists.
func (c *Catalog) Seed(ctx context.Context, ds catalog.Dataset) (retErr error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	exec := func(query string, args ...any) error {
		_, err := tx.ExecContext(ctx, c.dialect.Rebind(query), args...)
		return err
	}
	for _, co := range ds.Courses {
		if err := exec(`INSERT INTO courses (id, code, name) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`, co.ID, co.Code, co.Name); err != nil {
			return fmt.Errorf("seed course %s: %w", co.Code, err)
		}
	}
	for _, p := range ds.Papers {
		if err := exec(`INSERT INTO papers (id, course_id, name, period, sitting, year_start, year_stop, link) VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
			p.ID, p.CourseID, p.Name, p.Period, p.Sitting, p.YearStart, p.YearStop, p.Link); err != nil {
			return fmt.Errorf("seed paper %d: %w", p.ID, err)
		}
	}
	for _, q := range ds.Questions {
		if err := exec(`INSERT INTO questions (id, paper_id, parent_id, idx, path, content, marks) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
			q.ID, q.PaperID, nullID(q.ParentID), q.Index, formatPath(q.Path), q.Content, q.Marks); err != nil {
			return fmt.Errorf("seed question %d: %w", q.ID, err)
		}
	}
	for _, u := range ds.Users {
		if err := exec(`INSERT INTO users (id, name, email, password_hash) VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`, u.ID, u.Name, strings.ToLower(u.Email), u.PasswordHash); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		for _, course := range u.Courses {
			if err := exec(`INSERT INTO user_courses (user_id, course_id) VALUES (?, ?) ON CONFLICT DO NOTHING`, u.ID, course); err != nil {
				return fmt.Errorf("seed user course %d: %w", course, err)
			}
		}
	}
	for _, cm := range ds.Comments {
		if err := exec(`INSERT INTO comments (id, entity_id, user_id, parent_id, content, deleted, created_at) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
			cm.ID, cm.EntityID, cm.UserID, nullID(cm.ParentID), cm.Content, cm.Deleted, cm.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("seed comment %d: %w", cm.ID, err)
		}
	}
	return tx.Commit()
}

// Login checks the password and stores a new session.
func (c *Catalog) Login(ctx context.Context, email, password string) (domain.Entity, error) {
	var (
		u    catalog.User
		hash string
	)
	row := c.db.QueryRowContext(ctx, c.dialect.Rebind(`SELECT id, name, email, password_hash FROM users WHERE email = ?`), strings.ToLower(email))
	err := row.Scan(&u.ID, &u.Name, &u.Email, &hash)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !catalog.CheckPassword(hash, password)) {
		return nil, fmt.Errorf("login %s: %w", email, catalog.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	key := uuid.NewString()
	if _, err := c.db.ExecContext(ctx, c.dialect.Rebind(`INSERT INTO sessions (session_key, user_id) VALUES (?, ?)`), key, u.ID); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return domain.Entity{"user": u.Entity(), "key": key}, nil
}

// Connect resolves key to its session.
func (c *Catalog) Connect(ctx context.Context, key string) (catalog.API, error) {
	var user int64
	err := c.db.QueryRowContext(ctx, c.dialect.Rebind(`SELECT user_id FROM sessions WHERE session_key = ?`), key).Scan(&user)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("connect: %w", catalog.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return &handle{c: c, user: user}, nil
}

type handle struct {
	c    *Catalog
	user int64
}

func (h *handle) GetCourses(ctx context.Context) (domain.Entity, error) {
	courses, err := h.c.courses(ctx, `SELECT c.id, c.code, c.name FROM courses c JOIN user_courses uc ON uc.course_id = c.id WHERE uc.user_id = ? ORDER BY c.code`, h.user)
	if err != nil {
		return nil, err
	}
	return domain.Entity{"courses": catalog.Entities(courses)}, nil
}

func (h *handle) GetCourse(ctx context.Context, code string) (domain.Entity, error) {
	course, err := h.c.courseByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	papers, err := h.c.papers(ctx, `SELECT id, course_id, name, period, sitting, year_start, year_stop, link FROM papers WHERE course_id = ?`, course.ID)
	if err != nil {
		return nil, err
	}
	return catalog.CourseWithPapers(course, papers), nil
}

func (h *handle) GetPopular(ctx context.Context, code string) (domain.Entity, error) {
	course, err := h.c.courseByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	rows, err := h.c.db.QueryContext(ctx, h.c.dialect.Rebind(`
		SELECT q.id, q.paper_id, q.parent_id, q.idx, q.path, q.content, q.marks, COUNT(cm.id)
		FROM questions q
		JOIN papers p ON p.id = q.paper_id
		JOIN comments cm ON cm.entity_id = q.id AND cm.deleted = FALSE
		WHERE p.course_id = ?
		GROUP BY q.id, q.paper_id, q.parent_id, q.idx, q.path, q.content, q.marks`), course.ID)
	if err != nil {
		return nil, fmt.Errorf("select popular: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var popular []catalog.PopularQuestion
	for rows.Next() {
		var pq catalog.PopularQuestion
		q, err := scanQuestion(rows, &pq.Comments)
		if err != nil {
			return nil, err
		}
		pq.Question = q
		popular = append(popular, pq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return catalog.Popular(course, popular), nil
}

func (h *handle) SearchCourses(ctx context.Context, query string) (domain.Entity, error) {
	pattern := "%" + strings.ToLower(strings.ReplaceAll(query, "+", " ")) + "%"
	courses, err := h.c.courses(ctx, fmt.Sprintf(`SELECT id, code, name FROM courses WHERE LOWER(name) LIKE ? OR LOWER(code) LIKE ? ORDER BY code LIMIT %d`, catalog.SearchLimit), pattern, pattern)
	if err != nil {
		return nil, err
	}
	return domain.Entity{"courses": catalog.Entities(courses)}, nil
}

func (h *handle) GetPaper(ctx context.Context, code string, year int, period string) (domain.Entity, error) {
	p, err := catalog.NormalizePeriod(period)
	if err != nil {
		return nil, err
	}
	course, err := h.c.courseByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	papers, err := h.c.papers(ctx, `SELECT id, course_id, name, period, sitting, year_start, year_stop, link FROM papers WHERE course_id = ? AND year_start = ? AND period = ?`, course.ID, year, p)
	if err != nil {
		return nil, err
	}
	if len(papers) == 0 {
		return nil, catalog.NotFound("paper", fmt.Sprintf("%s/%d/%s", course.Code, year, p))
	}
	paper := papers[0]
	rows, err := h.c.db.QueryContext(ctx, h.c.dialect.Rebind(`SELECT id, paper_id, parent_id, idx, path, content, marks FROM questions WHERE paper_id = ?`), paper.ID)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var questions []catalog.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return catalog.PaperWithQuestions(course, paper, questions), nil
}

func (h *handle) GetComments(ctx context.Context, entity int64) (domain.Entity, error) {
	comments, err := h.c.comments(ctx, `SELECT id, entity_id, user_id, parent_id, content, deleted, created_at FROM comments WHERE entity_id = ? ORDER BY id`, entity)
	if err != nil {
		return nil, err
	}
	return domain.Entity{"comments": catalog.Entities(comments)}, nil
}

func (h *handle) CreateComment(ctx context.Context, entity int64, content string, parent int64) (_ domain.Entity, retErr error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("comment content: %w", catalog.ErrInvalid)
	}
	tx, err := h.c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin comment: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	var exists int
	err = tx.QueryRowContext(ctx, h.c.dialect.Rebind(`SELECT COUNT(*) FROM (SELECT id FROM questions WHERE id = ? UNION ALL SELECT id FROM comments WHERE id = ?) e`), entity, entity).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check entity: %w", err)
	}
	if exists == 0 {
		return nil, catalog.NotFound("entity", entity)
	}
	if parent != 0 {
		err = tx.QueryRowContext(ctx, h.c.dialect.Rebind(`SELECT COUNT(*) FROM comments WHERE id = ? AND entity_id = ?`), parent, entity).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check parent: %w", err)
		}
		if exists == 0 {
			return nil, catalog.NotFound("comment", parent)
		}
	}
	var next int64
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM (SELECT id FROM questions UNION ALL SELECT id FROM comments) e`).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("next comment id: %w", err)
	}
	cm := catalog.Comment{ID: next, EntityID: entity, UserID: h.user, ParentID: parent, Content: content, CreatedAt: h.c.now().UTC()}
	_, err = tx.ExecContext(ctx, h.c.dialect.Rebind(`INSERT INTO comments (id, entity_id, user_id, parent_id, content, deleted, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		cm.ID, cm.EntityID, cm.UserID, nullID(cm.ParentID), cm.Content, false, cm.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return domain.Entity{"comment": cm.Entity()}, nil
}

func (h *handle) DeleteComment(ctx context.Context, entity, id int64) (domain.Entity, error) {
	res, err := h.c.db.ExecContext(ctx, h.c.dialect.Rebind(`UPDATE comments SET deleted = TRUE WHERE id = ? AND entity_id = ?`), id, entity)
	if err != nil {
		return nil, fmt.Errorf("delete comment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, catalog.NotFound("comment", id)
	}
	comments, err := h.c.comments(ctx, `SELECT id, entity_id, user_id, parent_id, content, deleted, created_at FROM comments WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return nil, catalog.NotFound("comment", id)
	}
	return domain.Entity{"comment": comments[0].Entity()}, nil
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

func (c *Catalog) courseByCode(ctx context.Context, code string) (catalog.Course, error) {
	code = catalog.NormalizeCode(code)
	courses, err := c.courses(ctx, `SELECT id, code, name FROM courses WHERE code = ?`, code)
	if err != nil {
		return catalog.Course{}, err
	}
	if len(courses) == 0 {
		return catalog.Course{}, catalog.NotFound("course", code)
	}
	return courses[0], nil
}

func (c *Catalog) courses(ctx context.Context, query string, args ...any) ([]catalog.Course, error) {
	rows, err := c.db.QueryContext(ctx, c.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select courses: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []catalog.Course
	for rows.Next() {
		var co catalog.Course
		if err := rows.Scan(&co.ID, &co.Code, &co.Name); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, co)
	}
	return out, rows.Err()
}

func (c *Catalog) papers(ctx context.Context, query string, args ...any) ([]catalog.Paper, error) {
	rows, err := c.db.QueryContext(ctx, c.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select papers: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []catalog.Paper
	for rows.Next() {
		var p catalog.Paper
		if err := rows.Scan(&p.ID, &p.CourseID, &p.Name, &p.Period, &p.Sitting, &p.YearStart, &p.YearStop, &p.Link); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *Catalog) comments(ctx context.Context, query string, args ...any) ([]catalog.Comment, error) {
	rows, err := c.db.QueryContext(ctx, c.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select comments: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []catalog.Comment
	for rows.Next() {
		var (
			cm      catalog.Comment
			parent  sql.NullInt64
			created string
		)
		if err := rows.Scan(&cm.ID, &cm.EntityID, &cm.UserID, &parent, &cm.Content, &cm.Deleted, &created); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		cm.ParentID = parent.Int64
		if cm.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("comment %d created_at: %w", cm.ID, err)
		}
		out = append(out, cm)
	}
	return out, rows.Err()
}

func scanQuestion(rows *sql.Rows, extra ...any) (catalog.Question, error) {
	var (
		q      catalog.Question
		parent sql.NullInt64
		path   string
	)
	dest := append([]any{&q.ID, &q.PaperID, &parent, &q.Index, &path, &q.Content, &q.Marks}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return q, fmt.Errorf("scan question: %w", err)
	}
	q.ParentID = parent.Int64
	var err error
	q.Path, err = parsePath(path)
	return q, err
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
