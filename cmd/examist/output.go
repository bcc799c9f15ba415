package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"examist/internal/core"
	"examist/pkg/domain"
)

// print writes v as indented JSON, or through text into aligned columns.
func (c *cli) print(v any, text func(w io.Writer)) error {
	if c.output == "json" {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

func writeCourses(w io.Writer, courses core.Collection) {
	for _, course := range courses {
		fmt.Fprintf(w, "%s\t%s\n", course.String("code"), course.String("name"))
	}
}

func writeQuestion(w io.Writer, q core.Entity) {
	path, _ := q["path"].([]any)
	indent := strings.Repeat("  ", max(len(path)-1, 0))
	fmt.Fprintf(w, "%sQ%s\t[%v]\t%s", indent, formatPath(path), q["marks"], q.String("content"))
	if n, ok := q["comment_count"]; ok {
		fmt.Fprintf(w, "\t%v comments", n)
	}
	fmt.Fprintln(w)
}

func writeComment(w io.Writer, comment core.Entity) {
	content := comment.String("content")
	if comment["deleted"] == true {
		content = "[deleted]"
	}
	reply := ""
	if parent := comment["parent"]; parent != nil {
		reply = fmt.Sprintf("re #%v", parent)
	}
	fmt.Fprintf(w, "#%v\t%s\tuser %v\t%s\n", comment["id"], reply, comment["user"], content)
}

// formatPath renders a question path such as [1 2] as 1.2.
func formatPath(path []any) string {
	parts := make([]string, len(path))
	for i, p := range path {
		switch n := p.(type) {
		case int64:
			parts[i] = strconv.FormatInt(n, 10)
		default:
			parts[i] = fmt.Sprint(n)
		}
	}
	return strings.Join(parts, ".")
}

// collection resolves the records listed under field in a response payload
// to their stored copies in r.
func collection(r *core.Resource, state core.State, payload any, field string) core.Collection {
	p, _ := payload.(domain.Entity)
	items, _ := p[field].([]any)
	out := make(core.Collection, 0, len(items))
	for _, item := range items {
		e, ok := item.(domain.Entity)
		if !ok {
			continue
		}
		if stored := r.SelectByKey(e["id"])(state); stored != nil {
			out = append(out, stored)
		}
	}
	return out
}

func record(payload any, field string) domain.Entity {
	p, _ := payload.(domain.Entity)
	e, _ := p[field].(domain.Entity)
	return e
}
