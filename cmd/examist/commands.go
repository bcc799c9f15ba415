package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"examist/internal/catalog"
	"examist/internal/core"
	"examist/internal/model"
	"examist/pkg/domain"
)

// authed wraps fn so it runs with a signed-in session.
func (c *cli) authed(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := c.signIn(ctx); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
		return fn(ctx, args)
	}
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print the session key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email != "" {
				c.cfg.Auth.Key = ""
				c.cfg.Auth.Email = email
				c.cfg.Auth.Password = password
			}
			if err := c.signIn(cmd.Context()); err != nil {
				return err
			}
			s := c.app.Session()
			out := domain.Entity{"user": s.User, "key": s.Key}
			return c.print(out, func(w io.Writer) {
				fmt.Fprintf(w, "signed in as\t%s <%s>\n", s.User.String("name"), s.User.String("email"))
				fmt.Fprintf(w, "key\t%s\n", s.Key)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email; defaults to auth.email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func (c *cli) coursesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List the signed-in user's courses",
		Args:  cobra.NoArgs,
		RunE: c.authed(func(ctx context.Context, _ []string) error {
			if _, err := c.app.GetCourses(ctx).Wait(ctx); err != nil {
				return err
			}
			courses := c.app.Courses.All(c.app.State())
			return c.print(courses, func(w io.Writer) { writeCourses(w, courses) })
		}),
	}
}

func (c *cli) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Find courses by code or name",
		Args:  cobra.ExactArgs(1),
		RunE: c.authed(func(ctx context.Context, args []string) error {
			act, err := c.app.Search(ctx, args[0]).Wait(ctx)
			if err != nil {
				return err
			}
			found := collection(c.app.Courses, c.app.State(), act.Payload, "courses")
			return c.print(found, func(w io.Writer) {
				if len(found) == 0 {
					fmt.Fprintf(w, "no courses match %q\n", args[0])
				}
				writeCourses(w, found)
			})
		}),
	}
}

func (c *cli) courseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "course CODE",
		Short: "Show a course with its papers and popular questions",
		Args:  cobra.ExactArgs(1),
		RunE: c.authed(func(ctx context.Context, args []string) error {
			code := args[0]
			course, err := c.app.LoadCourse(ctx, code)
			if err != nil {
				return err
			}
			popular := c.app.SelectPopularQuestions(code)(c.app.State())
			out := domain.Entity{"course": course, "popular_questions": popular}
			return c.print(out, func(w io.Writer) {
				fmt.Fprintf(w, "%s\t%s\n", course.String("code"), course.String("name"))
				papers, _ := course["papers"].(core.Collection)
				fmt.Fprintf(w, "papers (%d)\n", len(papers))
				for _, p := range papers {
					fmt.Fprintf(w, "  %v\t%s\tsitting %v\n", p["year_start"], p.String("period"), p["sitting"])
				}
				fmt.Fprintf(w, "popular questions (%d)\n", len(popular))
				for _, q := range popular {
					writeQuestion(w, q)
				}
			})
		}),
	}
}

func (c *cli) paperCmd() *cobra.Command {
	var contents bool
	cmd := &cobra.Command{
		Use:   "paper CODE YEAR PERIOD",
		Short: "Show a paper sitting and its questions",
		Args:  cobra.ExactArgs(3),
		RunE: c.authed(func(ctx context.Context, args []string) error {
			year, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("year %q: %w", args[1], catalog.ErrInvalid)
			}
			ref := model.PaperRef{Code: args[0], Year: year, Period: args[2]}
			if _, err := c.app.GetPaper(ctx, ref).Wait(ctx); err != nil {
				return err
			}
			// Contents attach to a stored paper, so they load second.
			if contents {
				if _, err := c.app.GetPaperContents(ctx, ref).Wait(ctx); err != nil {
					return err
				}
			}
			paper := c.app.SelectPaper(ref)(c.app.State())
			if paper == nil {
				return catalog.NotFound("paper", ref.String())
			}
			return c.print(paper, func(w io.Writer) {
				fmt.Fprintf(w, "%s\t%s\n", ref, paper.String("name"))
				if doc, ok := paper["contents"].(domain.Entity); ok {
					fmt.Fprintf(w, "document\t%s\t%v bytes\t%s\n", doc.String("key"), doc["size"], doc.String("url"))
				}
				questions, _ := paper["questions"].(core.Collection)
				for _, q := range questions {
					writeQuestion(w, q)
				}
			})
		}),
	}
	cmd.Flags().BoolVar(&contents, "contents", false, "also resolve the paper's PDF document")
	return cmd
}

func (c *cli) commentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comments ENTITY",
		Short: "List the comments on a question or other entity",
		Args:  cobra.ExactArgs(1),
		RunE: c.authed(func(ctx context.Context, args []string) error {
			entity, err := parseID("entity", args[0])
			if err != nil {
				return err
			}
			if _, err := c.app.GetComments(ctx, entity).Wait(ctx); err != nil {
				return err
			}
			comments := c.app.SelectCommentsOn(entity)(c.app.State())
			return c.print(comments, func(w io.Writer) {
				for _, comment := range comments {
					writeComment(w, comment)
				}
			})
		}),
	}
}

func (c *cli) commentCmd() *cobra.Command {
	var parent int64
	cmd := &cobra.Command{
		Use:   "comment ENTITY CONTENT",
		Short: "Post a comment, optionally as a reply",
		Args:  cobra.ExactArgs(2),
		RunE: c.authed(func(ctx context.Context, args []string) error {
			entity, err := parseID("entity", args[0])
			if err != nil {
				return err
			}
			act, err := c.app.CreateComment(ctx, model.NewComment{Entity: entity, Content: args[1], Parent: parent}).Wait(ctx)
			if err != nil {
				return err
			}
			created := c.app.Comments.SelectByKey(record(act.Payload, "comment")["id"])(c.app.State())
			if created == nil {
				return errors.New("created comment missing from the store")
			}
			return c.print(created, func(w io.Writer) { writeComment(w, created) })
		}),
	}
	cmd.Flags().Int64Var(&parent, "parent", 0, "id of the comment being replied to")
	return cmd
}

func (c *cli) deleteCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-comment ENTITY ID",
		Short: "Delete one of your comments",
		Args:  cobra.ExactArgs(2),
		RunE: c.authed(func(ctx context.Context, args []string) error {
			entity, err := parseID("entity", args[0])
			if err != nil {
				return err
			}
			id, err := parseID("comment", args[1])
			if err != nil {
				return err
			}
			act, err := c.app.DeleteComment(ctx, model.CommentRef{Entity: entity, ID: id}).Wait(ctx)
			if err != nil {
				return err
			}
			deleted := record(act.Payload, "comment")
			return c.print(deleted, func(w io.Writer) { fmt.Fprintf(w, "deleted comment #%d\n", id) })
		}),
	}
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s id %q: %w", kind, s, catalog.ErrInvalid)
	}
	return id, nil
}
