// Package catalogtest runs the behaviour every catalog backend shares against
// a fresh Authenticator seeded with catalog.Demo and its documents.
package catalogtest

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"examist/internal/blob"
	"examist/internal/catalog"
	"examist/pkg/domain"
)

// Documents returns an in-memory document store holding a PDF for every
// demo paper.
func Documents(t *testing.T) catalog.Documents {
	t.Helper()
	store := blob.NewMemory()
	if err := catalog.SeedDocuments(context.Background(), store, catalog.Demo()); err != nil {
		t.Fatalf("seed documents: %v", err)
	}
	return catalog.Documents{Store: store}
}

// Run exercises auth. Subtests share state and run in order; the comment
// subtests write to the backend.
func Run(t *testing.T, auth catalog.Authenticator) {
	t.Helper()
	ctx := context.Background()

	t.Run("login rejects bad credentials", func(t *testing.T) {
		for _, creds := range [][2]string{{"demo@examist.ie", "wrong"}, {"nobody@examist.ie", catalog.DemoPassword}} {
			if _, err := auth.Login(ctx, creds[0], creds[1]); !errors.Is(err, catalog.ErrUnauthorized) {
				t.Fatalf("Login(%s) err = %v, want ErrUnauthorized", creds[0], err)
			}
		}
		if _, err := auth.Connect(ctx, "not-a-session"); !errors.Is(err, catalog.ErrUnauthorized) {
			t.Fatalf("Connect err = %v, want ErrUnauthorized", err)
		}
	})

	out, err := auth.Login(ctx, "Demo@Examist.ie", catalog.DemoPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	key, _ := out["key"].(string)
	if key == "" {
		t.Fatalf("login returned no key: %v", out)
	}
	if user := entity(t, out["user"]); user["id"] != int64(1) || user.Has("password_hash") {
		t.Fatalf("login user = %v", user)
	}
	api, err := auth.Connect(ctx, key)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	t.Run("courses", func(t *testing.T) {
		got := must(t)(api.GetCourses(ctx))
		if ids := IDs(t, got["courses"]); !slices.Equal(ids, []int64{1, 2}) {
			t.Fatalf("GetCourses ids = %v", ids)
		}

		course := entity(t, must(t)(api.GetCourse(ctx, "ct101"))["course"])
		if course["code"] != "CT101" {
			t.Fatalf("course = %v", course)
		}
		if ids := IDs(t, course["papers"]); !slices.Equal(ids, []int64{12, 10, 11}) {
			t.Fatalf("course papers = %v, want newest first", ids)
		}
		if _, err := api.GetCourse(ctx, "XX999"); !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("missing course err = %v", err)
		}
	})

	t.Run("search", func(t *testing.T) {
		ids := IDs(t, must(t)(api.SearchCourses(ctx, "ct"))["courses"])
		slices.Sort(ids)
		if !slices.Equal(ids, []int64{1, 3}) {
			t.Fatalf("search ct = %v", ids)
		}
		if ids := IDs(t, must(t)(api.SearchCourses(ctx, "computing+SYSTEMS"))["courses"]); !slices.Equal(ids, []int64{1}) {
			t.Fatalf("search computing systems = %v", ids)
		}
		if ids := IDs(t, must(t)(api.SearchCourses(ctx, "zzz"))["courses"]); len(ids) != 0 {
			t.Fatalf("search zzz = %v", ids)
		}
	})

	t.Run("popular", func(t *testing.T) {
		got := must(t)(api.GetPopular(ctx, "CT101"))
		if entity(t, got["course"])["id"] != int64(1) {
			t.Fatalf("popular course = %v", got["course"])
		}
		if ids := IDs(t, got["popular_questions"]); !slices.Equal(ids, []int64{100, 102}) {
			t.Fatalf("popular ids = %v", ids)
		}
		first := entity(t, list(t, got["popular_questions"])[0])
		if first["comment_count"] != int64(2) {
			t.Fatalf("comment_count = %v", first["comment_count"])
		}
	})

	t.Run("paper", func(t *testing.T) {
		got := must(t)(api.GetPaper(ctx, "ct101", 2014, "Summer"))
		paper := entity(t, got["paper"])
		if paper["id"] != int64(10) || paper["course"] != int64(1) || paper["period"] != "summer" {
			t.Fatalf("paper = %v", paper)
		}
		if ids := IDs(t, paper["questions"]); !slices.Equal(ids, []int64{100, 101, 102}) {
			t.Fatalf("questions = %v", ids)
		}
		child := entity(t, list(t, paper["questions"])[1])
		if child["parent"] != int64(100) || !reflect.DeepEqual(child["path"], []any{int64(1), int64(1)}) {
			t.Fatalf("child question = %v", child)
		}
		if entity(t, list(t, paper["questions"])[0])["parent"] != nil {
			t.Fatalf("top-level question has a parent")
		}
		if _, err := api.GetPaper(ctx, "CT101", 2014, "fall"); !errors.Is(err, catalog.ErrInvalid) {
			t.Fatalf("bad period err = %v", err)
		}
		if _, err := api.GetPaper(ctx, "CT101", 1999, "summer"); !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("missing paper err = %v", err)
		}
	})

	t.Run("paper contents", func(t *testing.T) {
		doc := entity(t, must(t)(api.GetPaperContents(ctx, "ct101", 2014, "summer"))["document"])
		if doc["paper"] != int64(10) || doc["key"] != "papers/CT101/2014/summer.pdf" || doc["content_type"] != "application/pdf" {
			t.Fatalf("document = %v", doc)
		}
		if size, _ := doc["size"].(int64); size <= 0 {
			t.Fatalf("document size = %v", doc["size"])
		}
		if _, err := api.GetPaperContents(ctx, "CT101", 1999, "summer"); !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("missing document err = %v", err)
		}
	})

	t.Run("comments", func(t *testing.T) {
		got := must(t)(api.GetComments(ctx, 100))
		if ids := IDs(t, got["comments"]); !slices.Equal(ids, []int64{1000, 1001}) {
			t.Fatalf("comments = %v", ids)
		}
		if reply := entity(t, list(t, got["comments"])[1]); reply["parent"] != int64(1000) {
			t.Fatalf("reply parent = %v", reply["parent"])
		}

		if _, err := api.CreateComment(ctx, 100, "  ", 0); !errors.Is(err, catalog.ErrInvalid) {
			t.Fatalf("blank comment err = %v", err)
		}
		if _, err := api.CreateComment(ctx, 999999, "hello", 0); !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("unknown entity err = %v", err)
		}
		if _, err := api.CreateComment(ctx, 100, "hello", 1002); !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("foreign parent err = %v", err)
		}

		created := entity(t, must(t)(api.CreateComment(ctx, 100, "Agreed.", 1000))["comment"])
		if created["id"] != int64(1003) || created["entity"] != int64(100) || created["parent"] != int64(1000) || created["user"] != int64(1) {
			t.Fatalf("created = %v", created)
		}
		if ids := IDs(t, must(t)(api.GetComments(ctx, 100))["comments"]); !slices.Equal(ids, []int64{1000, 1001, 1003}) {
			t.Fatalf("comments after create = %v", ids)
		}

		deleted := entity(t, must(t)(api.DeleteComment(ctx, 100, 1003))["comment"])
		if deleted["deleted"] != true || deleted["content"] != "" {
			t.Fatalf("deleted = %v", deleted)
		}
		if _, err := api.DeleteComment(ctx, 100, 1002); !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("delete on wrong entity err = %v", err)
		}
		if ids := IDs(t, must(t)(api.GetComments(ctx, 100))["comments"]); !slices.Equal(ids, []int64{1000, 1001, 1003}) {
			t.Fatalf("soft delete dropped the row: %v", ids)
		}
	})
}

func must(t *testing.T) func(domain.Entity, error) domain.Entity {
	return func(e domain.Entity, err error) domain.Entity {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return e
	}
}

func entity(t *testing.T, v any) domain.Entity {
	t.Helper()
	switch e := v.(type) {
	case domain.Entity:
		return e
	case map[string]any:
		return e
	default:
		t.Fatalf("value %v (%T) is not a record", v, v)
		return nil
	}
}

func list(t *testing.T, v any) []any {
	t.Helper()
	items, ok := v.([]any)
	if !ok {
		t.Fatalf("value %v (%T) is not a list", v, v)
	}
	return items
}

// IDs returns the id field of every record in a JSON-shaped list.
func IDs(t *testing.T, v any) []int64 {
	t.Helper()
	items := list(t, v)
	out := make([]int64, 0, len(items))
	for _, item := range items {
		id, ok := entity(t, item)["id"].(int64)
		if !ok {
			t.Fatalf("record %v has no int64 id", item)
		}
		out = append(out, id)
	}
	return out
}
