package catalog

import (
	"sort"
	"time"

	"golang.org/x/crypto/bcrypt"

	"examist/pkg/domain"
)

// Course is a university module, e.g. CT101.
type Course struct {
	ID   int64
	Code string
	Name string
}

// Entity renders the course the way the REST API serializes it.
func (c Course) Entity() domain.Entity {
	return domain.Entity{"id": c.ID, "code": c.Code, "name": c.Name}
}

// Paper is one sitting of a course's exam.
type Paper struct {
	ID        int64
	CourseID  int64
	Name      string
	Period    string
	Sitting   int
	YearStart int
	YearStop  int
	Link      string
}

// Entity renders the paper. course holds the course id.
func (p Paper) Entity() domain.Entity {
	return domain.Entity{
		"id":         p.ID,
		"course":     p.CourseID,
		"name":       p.Name,
		"period":     p.Period,
		"sitting":    int64(p.Sitting),
		"year_start": int64(p.YearStart),
		"year_stop":  int64(p.YearStop),
		"link":       p.Link,
	}
}

// Question is one node of a paper's question tree. Indexes start at one.
type Question struct {
	ID       int64
	PaperID  int64
	ParentID int64
	Index    int
	Path     []int
	Content  string
	Marks    int
}

// Entity renders the question. parent is nil for top-level questions.
func (q Question) Entity() domain.Entity {
	path := make([]any, len(q.Path))
	for i, p := range q.Path {
		path[i] = int64(p)
	}
	e := domain.Entity{
		"id":      q.ID,
		"paper":   q.PaperID,
		"parent":  nil,
		"index":   int64(q.Index),
		"path":    path,
		"content": q.Content,
		"marks":   int64(q.Marks),
	}
	if q.ParentID != 0 {
		e["parent"] = q.ParentID
	}
	return e
}

// Comment is a discussion post on an entity such as a question.
type Comment struct {
	ID        int64
	EntityID  int64
	UserID    int64
	ParentID  int64
	Content   string
	Deleted   bool
	CreatedAt time.Time
}

// Entity renders the comment. Deleted comments keep their row but lose their
// content.
func (c Comment) Entity() domain.Entity {
	e := domain.Entity{
		"id":         c.ID,
		"entity":     c.EntityID,
		"user":       c.UserID,
		"parent":     nil,
		"content":    c.Content,
		"deleted":    c.Deleted,
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.ParentID != 0 {
		e["parent"] = c.ParentID
	}
	if c.Deleted {
		e["content"] = ""
	}
	return e
}

// User is an account that can sign in.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Courses      []int64
}

// Entity renders the user without credentials.
func (u User) Entity() domain.Entity {
	return domain.Entity{"id": u.ID, "name": u.Name, "email": u.Email}
}

// HashPassword hashes a password for storage.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Entities renders records with their Entity method.
func Entities[R interface{ Entity() domain.Entity }](records []R) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r.Entity()
	}
	return out
}

// CourseWithPapers renders {course} with papers nested, newest year first.
func CourseWithPapers(c Course, papers []Paper) domain.Entity {
	sorted := append([]Paper(nil), papers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].YearStart != sorted[j].YearStart {
			return sorted[i].YearStart > sorted[j].YearStart
		}
		return sorted[i].ID < sorted[j].ID
	})
	return domain.Entity{"course": c.Entity().With("papers", Entities(sorted))}
}

// PaperWithQuestions renders {course, paper} with questions nested in path
// order.
func PaperWithQuestions(c Course, p Paper, questions []Question) domain.Entity {
	sorted := append([]Question(nil), questions...)
	sort.SliceStable(sorted, func(i, j int) bool { return lessPath(sorted[i].Path, sorted[j].Path) })
	return domain.Entity{
		"course": c.Entity(),
		"paper":  p.Entity().With("questions", Entities(sorted)),
	}
}

// PopularQuestion pairs a question with its comment count.
type PopularQuestion struct {
	Question
	Comments int
}

// Entity renders the question with comment_count.
func (p PopularQuestion) Entity() domain.Entity {
	return p.Question.Entity().With("comment_count", int64(p.Comments))
}

// Popular renders {course, popular_questions}, most discussed first and
// capped at PopularLimit.
func Popular(c Course, questions []PopularQuestion) domain.Entity {
	sorted := append([]PopularQuestion(nil), questions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Comments != sorted[j].Comments {
			return sorted[i].Comments > sorted[j].Comments
		}
		return sorted[i].ID < sorted[j].ID
	})
	if len(sorted) > PopularLimit {
		sorted = sorted[:PopularLimit]
	}
	return domain.Entity{"course": c.Entity(), "popular_questions": Entities(sorted)}
}

func lessPath(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
