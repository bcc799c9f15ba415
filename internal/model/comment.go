package model

import (
	"context"

	"examist/internal/catalog"
	"examist/internal/core"
)

// NewComment is a comment to post. Parent is zero for a top-level comment.
type NewComment struct {
	Entity  int64
	Content string
	Parent  int64
}

// CommentRef identifies a comment on an entity.
type CommentRef struct {
	Entity int64
	ID     int64
}

// GetComments loads the comments attached to an entity.
var GetComments = core.CreateStatefulAction[catalog.API, int64](ActionGetComments, SelectAPI,
	func(ctx context.Context, api catalog.API, entity int64) (any, error) {
		return api.GetComments(ctx, entity)
	}, func(entity int64) any { return entity })

// CreateComment posts a comment.
var CreateComment = core.CreateStatefulAction[catalog.API, NewComment](ActionCreateComment, SelectAPI,
	func(ctx context.Context, api catalog.API, c NewComment) (any, error) {
		return api.CreateComment(ctx, c.Entity, c.Content, c.Parent)
	}, func(c NewComment) any { return c.Entity })

// DeleteComment soft-deletes a comment.
var DeleteComment = core.CreateStatefulAction[catalog.API, CommentRef](ActionDeleteComment, SelectAPI,
	func(ctx context.Context, api catalog.API, ref CommentRef) (any, error) {
		return api.DeleteComment(ctx, ref.Entity, ref.ID)
	}, func(ref CommentRef) any { return ref.ID })

func newComments(logger core.Logger) *core.Resource {
	comments := core.MustResource("comments", core.KeyField("id"), core.WithResourceLogger(logger))
	comments.AddProducer(ActionGetComments, core.Field("comments"))
	comments.AddProducer(ActionCreateComment, core.Field("comment"))
	comments.HandleAction(ActionDeleteComment, core.UpdateWhere(
		func(comment core.Entity, payload any) bool {
			return comment["id"] == entityOf(payload, "comment")["id"]
		},
		func(comment core.Entity, _ any) core.Entity {
			return comment.With("deleted", true).With("content", "")
		}))
	return comments
}

// SelectCommentsOn selects the comments attached to an entity, deleted ones
// included.
func (a *App) SelectCommentsOn(entity int64) core.Selector[core.Collection] {
	return a.Comments.SelectAllByProp("entity")(entity)
}
