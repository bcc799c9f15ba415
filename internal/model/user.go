// Package model wires the exam archive onto the resource store: the user
// session slice, the course, paper, question and comment resources, and the
// actions that fill them through a catalog.API handle.
package model

import (
	"context"
	"errors"
	"fmt"

	"examist/internal/catalog"
	"examist/internal/core"
	"examist/pkg/domain"
)

// Action types.
const (
	ActionLogin            = "LOGIN"
	ActionConnect          = "CONNECT"
	ActionLogout           = "LOGOUT"
	ActionGetCourses       = "GET_COURSES"
	ActionGetCourse        = "GET_COURSE"
	ActionGetPopular       = "GET_POPULAR"
	ActionCourseSearch     = "COURSE_SEARCH"
	ActionGetPaper         = "GET_PAPER"
	ActionGetPaperContents = "GET_PAPER_CONTENTS"
	ActionGetComments      = "GET_COMMENTS"
	ActionCreateComment    = "CREATE_COMMENT"
	ActionDeleteComment    = "DELETE_COMMENT"
)

// UserSlice names the session slice in the state tree.
const UserSlice = "user"

// ErrNoAuthenticator reports a login attempted on an App built without one.
var ErrNoAuthenticator = errors.New("model: no authenticator configured")

// Session is the signed-in user and the API handle bound to their key.
type Session struct {
	User domain.Entity
	Key  string
	API  catalog.API
}

// Credentials sign a user in.
type Credentials struct {
	Email    string
	Password string
}

// SelectAPI returns the session's API handle, or nil when signed out.
var SelectAPI core.Selector[catalog.API] = func(state core.State) catalog.API {
	if s := SelectSession(state); s != nil {
		return s.API
	}
	return nil
}

// SelectSession returns the current session, or nil when signed out.
func SelectSession(state core.State) *Session {
	v, _ := state.Slice(UserSlice)
	s, _ := v.(*Session)
	return s
}

// Connect stores an already connected session.
var Connect = core.CreateAction[*Session](ActionConnect, nil, nil)

// Logout drops the session.
var Logout = core.CreateAction[struct{}](ActionLogout, func(struct{}) any { return nil }, nil)

// GetCourses loads the signed-in user's courses.
var GetCourses = core.CreateStatefulAction[catalog.API, struct{}](ActionGetCourses, SelectAPI,
	func(ctx context.Context, api catalog.API, _ struct{}) (any, error) {
		return api.GetCourses(ctx)
	}, nil)

func newUser() *core.Registry[*Session] {
	user := core.NewRegistry[*Session](UserSlice, nil)
	setSession := func(_ *Session, payload any) (*Session, error) {
		s, ok := payload.(*Session)
		if !ok || s == nil {
			return nil, fmt.Errorf("session payload is %T", payload)
		}
		return s, nil
	}
	user.HandleAction(ActionLogin, setSession)
	user.HandleAction(ActionConnect, setSession)
	user.HandleAction(ActionLogout, func(*Session, any) (*Session, error) { return nil, nil })
	return user
}

// login signs in and connects with the returned key.
func login(auth catalog.Authenticator) func(context.Context, Credentials) (any, error) {
	return func(ctx context.Context, c Credentials) (any, error) {
		if auth == nil {
			return nil, ErrNoAuthenticator
		}
		out, err := auth.Login(ctx, c.Email, c.Password)
		if err != nil {
			return nil, err
		}
		key, _ := out["key"].(string)
		user, _ := out["user"].(domain.Entity)
		return connect(ctx, auth, key, user)
	}
}

// resume connects with a key from an earlier login.
func resume(auth catalog.Authenticator) func(context.Context, string) (any, error) {
	return func(ctx context.Context, key string) (any, error) {
		if auth == nil {
			return nil, ErrNoAuthenticator
		}
		return connect(ctx, auth, key, nil)
	}
}

func connect(ctx context.Context, auth catalog.Authenticator, key string, user domain.Entity) (*Session, error) {
	api, err := auth.Connect(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Key: key, API: api}, nil
}
