package model

import (
	"context"
	"fmt"
	"strings"

	"examist/internal/catalog"
	"examist/internal/core"
)

// PaperRef identifies one sitting of a course's exam.
type PaperRef struct {
	Code   string
	Year   int
	Period string
}

func (p PaperRef) String() string {
	return fmt.Sprintf("%s/%d/%s", strings.ToUpper(p.Code), p.Year, strings.ToLower(p.Period))
}

// GetPaper loads a paper with its course and questions.
var GetPaper = core.CreateStatefulAction[catalog.API, PaperRef](ActionGetPaper, SelectAPI,
	func(ctx context.Context, api catalog.API, ref PaperRef) (any, error) {
		return api.GetPaper(ctx, ref.Code, ref.Year, ref.Period)
	}, paperMeta)

// GetPaperContents loads the document describing a paper's PDF.
var GetPaperContents = core.CreateStatefulAction[catalog.API, PaperRef](ActionGetPaperContents, SelectAPI,
	func(ctx context.Context, api catalog.API, ref PaperRef) (any, error) {
		return api.GetPaperContents(ctx, ref.Code, ref.Year, ref.Period)
	}, paperMeta)

func paperMeta(ref PaperRef) any { return ref.String() }

func newPapers(logger core.Logger) *core.Resource {
	papers := core.MustResource("papers", core.KeyField("id"),
		core.WithCleaner(core.Omit("questions")),
		core.WithResourceLogger(logger))
	papers.AddProducer(ActionGetCourse, core.Path("course", "papers"))
	papers.AddProducer(ActionGetPaper, core.Field("paper"))
	papers.HandleAction(ActionGetPaperContents, core.UpdateWhere(
		func(paper core.Entity, payload any) bool {
			return paper["id"] == entityOf(payload, "document")["paper"]
		},
		func(paper core.Entity, payload any) core.Entity {
			return paper.With("contents", entityOf(payload, "document"))
		}))
	return papers
}

// SelectPapersOf selects the papers of a course in load order.
func (a *App) SelectPapersOf(courseID int64) core.Selector[core.Collection] {
	return a.Papers.SelectAllByProp("course")(courseID)
}

func (a *App) paperOnly(ref PaperRef) core.Selector[core.Entity] {
	period := strings.ToLower(ref.Period)
	year := int64(ref.Year)
	return core.Compose(a.SelectCourseByCode, func(course core.Entity) core.Selector[core.Entity] {
		if course == nil {
			return core.Value[core.Entity](nil)
		}
		return core.Select(a.Papers, func(c core.Collection) core.Entity {
			return c.Find(func(p core.Entity) bool {
				return p["course"] == course["id"] && p["year_start"] == year && p["period"] == period
			})
		})
	})(ref.Code)
}

// SelectPaper selects a paper sitting joined with its questions. It is nil
// until both the course and the paper are loaded.
func (a *App) SelectPaper(ref PaperRef) core.Selector[core.Entity] {
	return core.JoinMany(a.paperOnly, a.Questions, "id", "paper", "questions")(ref)
}
