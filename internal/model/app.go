package model

import (
	"context"

	"golang.org/x/sync/errgroup"

	"examist/internal/catalog"
	"examist/internal/core"
)

// DefaultMemoSize bounds the per-code selector cache.
const DefaultMemoSize = 128

// App is the exam archive store: the session slice, the four resources and
// the store dispatching into them.
type App struct {
	Store     *core.Store
	User      *core.Registry[*Session]
	Courses   *core.Resource
	Papers    *core.Resource
	Questions *core.Resource
	Comments  *core.Resource

	login  core.TaskCreator[Credentials]
	resume core.TaskCreator[string]
	byCode func(string) core.Selector[core.Entity]
}

type settings struct {
	auth      catalog.Authenticator
	logger    core.Logger
	memoSize  int
	storeOpts []core.Option
}

// Option configures NewApp.
type Option func(*settings)

// WithAuthenticator signs users in for Login and Resume.
func WithAuthenticator(auth catalog.Authenticator) Option {
	return func(s *settings) { s.auth = auth }
}

// WithLogger logs store dispatches and resource merges.
func WithLogger(logger core.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithMemoSize bounds how many course codes keep a memoized selector.
func WithMemoSize(n int) Option {
	return func(s *settings) { s.memoSize = n }
}

// WithStoreOptions passes options such as metrics or a clock to the store.
func WithStoreOptions(opts ...core.Option) Option {
	return func(s *settings) { s.storeOpts = append(s.storeOpts, opts...) }
}

// NewApp builds the resources and the store that holds them.
func NewApp(opts ...Option) (*App, error) {
	s := settings{memoSize: DefaultMemoSize}
	for _, opt := range opts {
		opt(&s)
	}
	a := &App{
		User:      newUser(),
		Courses:   newCourses(s.logger),
		Papers:    newPapers(s.logger),
		Questions: newQuestions(s.logger),
		Comments:  newComments(s.logger),
		login:     core.CreateAsyncAction(ActionLogin, login(s.auth), func(c Credentials) any { return c.Email }),
		resume:    core.CreateAsyncAction(ActionConnect, resume(s.auth), nil),
	}
	var err error
	if a.byCode, err = core.MemoCreator(s.memoSize, a.courseByCode); err != nil {
		return nil, err
	}
	storeOpts := append([]core.Option{core.WithLogger(s.logger)}, s.storeOpts...)
	a.Store, err = core.NewStore([]core.Slice{a.User, a.Courses, a.Papers, a.Questions, a.Comments}, storeOpts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// State returns the current snapshot.
func (a *App) State() core.State { return a.Store.State() }

// Session returns the signed-in session, or nil.
func (a *App) Session() *Session { return SelectSession(a.State()) }

// Login signs in with email and password.
func (a *App) Login(ctx context.Context, email, password string) *core.Invocation {
	return a.Store.Run(ctx, a.login(Credentials{Email: email, Password: password}))
}

// Resume connects with the key of an earlier session.
func (a *App) Resume(ctx context.Context, key string) *core.Invocation {
	return a.Store.Run(ctx, a.resume(key))
}

// Connect stores an already connected session.
func (a *App) Connect(s *Session) error { return a.Store.Dispatch(Connect(s)) }

// Logout drops the session.
func (a *App) Logout() error { return a.Store.Dispatch(Logout(struct{}{})) }

// GetCourses loads the signed-in user's courses.
func (a *App) GetCourses(ctx context.Context) *core.Invocation {
	return a.Store.Run(ctx, GetCourses(struct{}{}))
}

// GetCourse loads a course with its papers.
func (a *App) GetCourse(ctx context.Context, code string) *core.Invocation {
	return a.Store.Run(ctx, GetCourse(code))
}

// GetPopular loads a course's popular questions.
func (a *App) GetPopular(ctx context.Context, code string) *core.Invocation {
	return a.Store.Run(ctx, GetPopular(code))
}

// Search finds courses by name or code.
func (a *App) Search(ctx context.Context, query string) *core.Invocation {
	return a.Store.Run(ctx, Search(query))
}

// GetPaper loads a paper with its questions.
func (a *App) GetPaper(ctx context.Context, ref PaperRef) *core.Invocation {
	return a.Store.Run(ctx, GetPaper(ref))
}

// GetPaperContents attaches the paper's document as contents.
func (a *App) GetPaperContents(ctx context.Context, ref PaperRef) *core.Invocation {
	return a.Store.Run(ctx, GetPaperContents(ref))
}

// GetComments loads the comments on an entity.
func (a *App) GetComments(ctx context.Context, entity int64) *core.Invocation {
	return a.Store.Run(ctx, GetComments(entity))
}

// CreateComment posts a comment.
func (a *App) CreateComment(ctx context.Context, c NewComment) *core.Invocation {
	return a.Store.Run(ctx, CreateComment(c))
}

// DeleteComment soft-deletes a comment.
func (a *App) DeleteComment(ctx context.Context, ref CommentRef) *core.Invocation {
	return a.Store.Run(ctx, DeleteComment(ref))
}

// LoadCourse fetches a course and its popular questions concurrently and
// returns the course joined with its papers.
func (a *App) LoadCourse(ctx context.Context, code string) (core.Entity, error) {
	course := a.GetCourse(ctx, code)
	popular := a.GetPopular(ctx, code)

	var popularResult core.Action
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := course.Wait(gctx)
		return err
	})
	g.Go(func() error {
		res, err := popular.Wait(gctx)
		popularResult = res
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// GET_COURSE replaces the stored course, so popular ids that landed
	// first are re-applied.
	if c := a.SelectCourseByCode(code)(a.State()); c != nil && !c.Has("popular_questions") {
		if err := a.Store.Dispatch(core.Action{Type: ActionGetPopular, Payload: popularResult.Payload, Meta: popularResult.Meta}); err != nil {
			return nil, err
		}
	}
	return a.SelectCourseWithPapers(code)(a.State()), nil
}
