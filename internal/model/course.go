package model

import (
	"context"
	"strings"

	"examist/internal/catalog"
	"examist/internal/core"
	"examist/pkg/domain"
)

// GetCourse loads a course and its papers by code.
var GetCourse = core.CreateStatefulAction[catalog.API, string](ActionGetCourse, SelectAPI,
	func(ctx context.Context, api catalog.API, code string) (any, error) {
		return api.GetCourse(ctx, code)
	}, codeMeta)

// GetPopular loads the most discussed questions of a course.
var GetPopular = core.CreateStatefulAction[catalog.API, string](ActionGetPopular, SelectAPI,
	func(ctx context.Context, api catalog.API, code string) (any, error) {
		return api.GetPopular(ctx, code)
	}, codeMeta)

// Search finds courses by name or code.
var Search = core.CreateStatefulAction[catalog.API, string](ActionCourseSearch, SelectAPI,
	func(ctx context.Context, api catalog.API, query string) (any, error) {
		return api.SearchCourses(ctx, query)
	}, nil)

func codeMeta(code string) any { return strings.ToUpper(code) }

func newCourses(logger core.Logger) *core.Resource {
	courses := core.MustResource("courses", core.KeyField("id"),
		core.WithCleaner(core.Omit("papers")),
		core.WithResourceLogger(logger))
	courses.AddProducer(ActionGetCourse, core.Field("course"))
	courses.AddProducer(ActionCourseSearch, core.Field("courses"))
	courses.AddProducer(ActionGetCourses, core.Field("courses"))

	courses.HandleAction(ActionGetPopular, core.UpdateWhere(
		func(course core.Entity, payload any) bool {
			return course["id"] == entityOf(payload, "course")["id"]
		},
		func(course core.Entity, payload any) core.Entity {
			questions, _ := entityOf(payload)["popular_questions"].([]any)
			ids := make([]any, 0, len(questions))
			for _, q := range questions {
				ids = append(ids, asEntity(q)["id"])
			}
			return course.With("popular_questions", ids)
		}))

	// A paper response embeds its course without popular_questions; keep the
	// ids fetched earlier instead of dropping them on reload.
	courses.HandleAction(ActionGetPaper, func(existing core.Collection, payload any) (core.Collection, error) {
		incoming := entityOf(payload, "course")
		if incoming == nil {
			return existing, &core.MergeError{Resource: courses.Name(), Reason: "paper payload has no course"}
		}
		prev := existing.Find(func(e core.Entity) bool { return e["id"] == incoming["id"] })
		if popular, ok := prev["popular_questions"]; ok {
			incoming = incoming.With("popular_questions", popular)
		}
		return courses.OnLoad(existing, []core.Entity{incoming})
	})
	return courses
}

// entityOf walks path through nested records in payload. It returns nil when
// any step is missing.
func entityOf(payload any, path ...string) domain.Entity {
	e := asEntity(payload)
	for _, name := range path {
		if e == nil {
			return nil
		}
		e = asEntity(e[name])
	}
	return e
}

func asEntity(v any) domain.Entity {
	switch t := v.(type) {
	case domain.Entity:
		return t
	case map[string]any:
		return t
	default:
		return nil
	}
}

func (a *App) courseByCode(code string) core.Selector[core.Entity] {
	code = strings.ToUpper(code)
	return core.Memo(a.Courses, func(c core.Collection) core.Entity {
		return c.Find(func(e core.Entity) bool { return e["code"] == code })
	})
}

// SelectCourseByCode selects a course by code, ignoring case.
func (a *App) SelectCourseByCode(code string) core.Selector[core.Entity] {
	return a.byCode(strings.ToUpper(code))
}

// SelectCourseByID selects a course by id.
func (a *App) SelectCourseByID(id int64) core.Selector[core.Entity] {
	return a.Courses.SelectByKey(id)
}

// SelectCourseWithPapers selects a course by code joined with the papers that
// reference it.
func (a *App) SelectCourseWithPapers(code string) core.Selector[core.Entity] {
	return core.JoinMany(a.SelectCourseByCode, a.Papers, "id", "course", "papers")(code)
}

// SelectPopularQuestions resolves a course's popular question ids against
// the questions resource. Ids without a loaded question are skipped.
func (a *App) SelectPopularQuestions(code string) core.Selector[core.Collection] {
	return core.Compose(a.SelectCourseByCode, func(course core.Entity) core.Selector[core.Collection] {
		ids, _ := course["popular_questions"].([]any)
		return core.Select(a.Questions, func(questions core.Collection) core.Collection {
			out := core.Collection{}
			for _, id := range ids {
				if q := questions.Find(func(e core.Entity) bool { return e["id"] == id }); q != nil {
					out = append(out, q)
				}
			}
			return out
		})
	})(code)
}
