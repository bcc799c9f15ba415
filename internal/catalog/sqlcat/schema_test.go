package sqlcat

import (
	"slices"
	"testing"
)

func TestRebind(t *testing.T) {
	q := `SELECT id FROM comments WHERE id = ? AND entity_id = ?`
	if got := SQLite.Rebind(q); got != q {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	want := `SELECT id FROM comments WHERE id = $1 AND entity_id = $2`
	if got := Postgres.Rebind(q); got != want {
		t.Fatalf("postgres rebind = %s", got)
	}
}

func TestQuestionPath(t *testing.T) {
	cases := []struct {
		path []int
		text string
	}{
		{nil, ""},
		{[]int{1}, "1"},
		{[]int{2, 1, 3}, "2.1.3"},
	}
	for _, c := range cases {
		if got := formatPath(c.path); got != c.text {
			t.Fatalf("formatPath(%v) = %q", c.path, got)
		}
		got, err := parsePath(c.text)
		if err != nil {
			t.Fatalf("parsePath(%q): %v", c.text, err)
		}
		if !slices.Equal(got, c.path) {
			t.Fatalf("parsePath(%q) = %v", c.text, got)
		}
	}
	if _, err := parsePath("1.x"); err == nil {
		t.Fatalf("expected error for malformed path")
	}
}
