package model

import "examist/internal/core"

func newQuestions(logger core.Logger) *core.Resource {
	questions := core.MustResource("questions", core.KeyField("id"), core.WithResourceLogger(logger))
	questions.AddProducer(ActionGetPaper, core.Path("paper", "questions"))
	questions.AddProducer(ActionGetPopular, core.Field("popular_questions"))
	return questions
}

// SelectQuestionsOf selects the questions of a paper in load order.
func (a *App) SelectQuestionsOf(paperID int64) core.Selector[core.Collection] {
	return a.Questions.SelectAllByProp("paper")(paperID)
}
