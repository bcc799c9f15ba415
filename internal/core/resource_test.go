package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func mustResource(t *testing.T, name string, key Key, opts ...ResourceOption) *Resource {
	t.Helper()
	r, err := NewResource(name, key, opts...)
	if err != nil {
		t.Fatalf("new resource %s: %v", name, err)
	}
	return r
}

func ids(c Collection) []any {
	out := make([]any, len(c))
	for i, e := range c {
		out[i] = e["id"]
	}
	return out
}

func TestNewResourceConfiguration(t *testing.T) {
	r := mustResource(t, "Courses", KeyField("id"))
	if r.Name() != "courses" || r.Type() != "COURSES" {
		t.Fatalf("unexpected naming %q/%q", r.Name(), r.Type())
	}

	cases := []struct {
		name string
		res  string
		key  Key
		opts []ResourceOption
	}{
		{"empty name", " ", KeyField("id"), nil},
		{"missing key", "papers", Key{}, nil},
		{"empty pick list", "papers", KeyField("id"), []ResourceOption{WithCleaner(Pick([]string{}...))}},
		{"blank field", "papers", KeyField("id"), []ResourceOption{WithCleaner(Omit(""))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewResource(tc.res, tc.key, tc.opts...)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || !errors.Is(err, ErrConfig) {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}

func TestMustResourcePanicsOnMissingKey(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustResource("questions", Key{})
}

func TestParseKeyAndCleaner(t *testing.T) {
	if k, err := ParseKey("code"); err != nil || k.resolve(Entity{"code": "C1"}) != "C1" {
		t.Fatalf("field key: %v", err)
	}
	fn := func(e Entity) any { return e.String("code") + "/" + e.String("year") }
	if k, err := ParseKey(fn); err != nil || k.resolve(Entity{"code": "C1", "year": "2015"}) != "C1/2015" {
		t.Fatalf("func key: %v", err)
	}
	for _, bad := range []any{nil, 42, []string{"id"}} {
		if _, err := ParseKey(bad); !errors.Is(err, ErrConfig) {
			t.Fatalf("ParseKey(%v) expected config error, got %v", bad, err)
		}
	}

	c, err := ParseCleaner([]any{"id", "name"})
	if err != nil {
		t.Fatalf("parse cleaner: %v", err)
	}
	got := c.Apply(Entity{"id": 1, "name": "A", "secret": "x"})
	if !reflect.DeepEqual(got, Entity{"id": 1, "name": "A"}) {
		t.Fatalf("unexpected cleaned entity %v", got)
	}
	if c, err := ParseCleaner("id"); err != nil || !reflect.DeepEqual(c.Apply(Entity{"id": 1, "x": 2}), Entity{"id": 1}) {
		t.Fatalf("single field cleaner: %v", err)
	}
	if c, err := ParseCleaner(nil); err != nil || !c.IsZero() {
		t.Fatalf("nil cleaner should be identity: %v", err)
	}
	for _, bad := range []any{7, []any{"id", 3}, map[string]string{}} {
		if _, err := ParseCleaner(bad); !errors.Is(err, ErrConfig) {
			t.Fatalf("ParseCleaner(%v) expected config error, got %v", bad, err)
		}
	}
}

func TestResourceKey(t *testing.T) {
	r := mustResource(t, "papers", KeyFunc(func(e Entity) any { return e["course"] }))
	if k, err := r.Key(Entity{"course": "CT101"}); err != nil || k != "CT101" {
		t.Fatalf("key = %v, %v", k, err)
	}
	if _, err := r.Key(Entity{"id": 1}); !errors.Is(err, ErrMerge) {
		t.Fatalf("missing key should be a merge error, got %v", err)
	}
	slices := mustResource(t, "slices", KeyField("path"))
	if _, err := slices.Key(Entity{"path": []int{1, 2}}); !errors.Is(err, ErrMerge) {
		t.Fatalf("uncomparable key should be a merge error, got %v", err)
	}
}

func TestOnLoadMergeSemantics(t *testing.T) {
	r := mustResource(t, "courses", KeyField("id"))

	t.Run("order preservation", func(t *testing.T) {
		out, err := r.OnLoad(Collection{{"id": 1}}, []Entity{{"id": 2}})
		if err != nil {
			t.Fatalf("merge: %v", err)
		}
		if !reflect.DeepEqual(ids(out), []any{1, 2}) {
			t.Fatalf("unexpected order %v", ids(out))
		}
		out, err = r.OnLoad(out, []Entity{{"id": 1, "name": "updated"}})
		if err != nil {
			t.Fatalf("merge: %v", err)
		}
		if !reflect.DeepEqual(ids(out), []any{1, 2}) || out[0]["name"] != "updated" {
			t.Fatalf("update moved or lost entity: %v", out)
		}
	})

	t.Run("newest wins", func(t *testing.T) {
		out, err := r.OnLoad(Collection{{"id": 1, "name": "A"}}, []Entity{{"id": 1, "name": "B"}})
		if err != nil {
			t.Fatalf("merge: %v", err)
		}
		if len(out) != 1 || !reflect.DeepEqual(out[0], Entity{"id": 1, "name": "B"}) {
			t.Fatalf("expected B to replace A, got %v", out)
		}
	})

	t.Run("existing only keys keep relative order", func(t *testing.T) {
		existing := Collection{{"id": 3}, {"id": 1}, {"id": 2}}
		out, err := r.OnLoad(existing, []Entity{{"id": 4}, {"id": 1, "v": 2}})
		if err != nil {
			t.Fatalf("merge: %v", err)
		}
		if !reflect.DeepEqual(ids(out), []any{3, 1, 2, 4}) {
			t.Fatalf("unexpected order %v", ids(out))
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		e := Entity{"id": 7, "name": "x"}
		once, err := r.OnLoad(Collection{{"id": 1}}, []Entity{e})
		if err != nil {
			t.Fatalf("merge: %v", err)
		}
		twice, err := r.OnLoad(once, []Entity{e})
		if err != nil {
			t.Fatalf("merge: %v", err)
		}
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("merging twice differs: %v vs %v", once, twice)
		}
	})

	t.Run("keys unique across batches", func(t *testing.T) {
		var c Collection
		batches := [][]Entity{
			{{"id": 1}, {"id": 2}},
			{{"id": 2}, {"id": 3}, {"id": 2, "dup": true}},
			{{"id": 3}, {"id": 1}},
		}
		for _, b := range batches {
			var err error
			if c, err = r.OnLoad(c, b); err != nil {
				t.Fatalf("merge: %v", err)
			}
		}
		seen := map[any]bool{}
		for _, e := range c {
			if seen[e["id"]] {
				t.Fatalf("duplicate key %v in %v", e["id"], c)
			}
			seen[e["id"]] = true
		}
		if len(c) != 3 || c[1]["dup"] != true {
			t.Fatalf("later duplicate in batch should win: %v", c)
		}
	})

	t.Run("existing is not mutated", func(t *testing.T) {
		existing := Collection{{"id": 1, "name": "A"}}
		if _, err := r.OnLoad(existing, []Entity{{"id": 1, "name": "B"}}); err != nil {
			t.Fatalf("merge: %v", err)
		}
		if existing[0]["name"] != "A" {
			t.Fatalf("existing collection mutated: %v", existing)
		}
	})

	t.Run("nil entity rejected", func(t *testing.T) {
		existing := Collection{{"id": 1}}
		out, err := r.OnLoad(existing, []Entity{{"id": 2}, nil})
		var me *MergeError
		if !errors.As(err, &me) || me.Index != 1 {
			t.Fatalf("expected merge error at index 1, got %v", err)
		}
		if !out.Same(existing) {
			t.Fatalf("failed merge must return the existing collection")
		}
	})
}

func TestOnLoadCleansOnce(t *testing.T) {
	calls := 0
	r := mustResource(t, "users", KeyField("id"), WithCleaner(CleanFunc(func(e Entity) Entity {
		calls++
		return e.Omit("password")
	})))
	c, err := r.OnLoad(nil, []Entity{{"id": 1, "password": "p"}})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, err = r.OnLoad(c, []Entity{{"id": 2, "password": "q"}}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if calls != 2 {
		t.Fatalf("cleaner ran %d times, want once per incoming entity", calls)
	}
	if c[0].Has("password") {
		t.Fatalf("cleaner not applied before storage: %v", c[0])
	}

	nilCleaner := mustResource(t, "broken", KeyField("id"), WithCleaner(CleanFunc(func(Entity) Entity { return nil })))
	if _, err := nilCleaner.OnLoad(nil, []Entity{{"id": 1}}); !errors.Is(err, ErrMerge) {
		t.Fatalf("nil cleaning result should fail, got %v", err)
	}
}

func TestPickCleanerBeforeStorage(t *testing.T) {
	r := mustResource(t, "courses", KeyField("id"), WithCleaner(Pick("id", "name")))
	out, err := r.OnLoad(nil, []Entity{{"id": 1, "name": "A", "secret": "x"}})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !reflect.DeepEqual(out, Collection{{"id": 1, "name": "A"}}) {
		t.Fatalf("unexpected stored entity %v", out)
	}
}

func TestAddProducer(t *testing.T) {
	r := mustResource(t, "papers", KeyField("id"), WithCleaner(Omit("questions")))
	r.AddProducer("GET_COURSE", Path("course", "papers"), CleanFunc(func(e Entity) Entity {
		return e.With("seen", true)
	}))
	payload := Entity{"course": Entity{"id": 9, "papers": []any{
		map[string]any{"id": 1, "questions": []any{}},
		map[string]any{"id": 2},
	}}}
	next, err := r.Reduce(Collection{}, Action{Type: "GET_COURSE", Payload: payload})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	c := next.(Collection)
	if len(c) != 2 || c[0].Has("questions") || c[0]["seen"] != true {
		t.Fatalf("producer did not extract and clean: %v", c)
	}

	_, err = r.Reduce(c, Action{Type: "GET_COURSE", Payload: Entity{"course": Entity{"id": 9}}})
	var me *MergeError
	if !errors.As(err, &me) || me.ActionType != "GET_COURSE" {
		t.Fatalf("missing papers should fail the merge naming the action, got %v", err)
	}
	if _, err := r.Reduce(c, Action{Type: "GET_COURSE", Payload: "nope"}); !errors.Is(err, ErrMerge) {
		t.Fatalf("non-record payload should fail, got %v", err)
	}
}

func TestTypedExtractor(t *testing.T) {
	type response struct{ Items []Entity }
	ex := Extract(func(r response) any { return r.Items })
	v, err := ex(response{Items: []Entity{{"id": 1}}})
	if err != nil || len(v.([]Entity)) != 1 {
		t.Fatalf("extract: %v %v", v, err)
	}
	if _, err := ex("other"); err == nil || !strings.Contains(err.Error(), "payload is string") {
		t.Fatalf("expected type error, got %v", err)
	}
}

func TestResourceSelectors(t *testing.T) {
	r := mustResource(t, "courses", KeyField("id"))
	st := newTestStore(t, r)
	if err := st.Dispatch(r.Load(Entity{"id": 1, "code": "CT1", "year": 1}, Entity{"id": 2, "code": "CT2", "year": 1})); err != nil {
		t.Fatalf("load: %v", err)
	}
	state := st.State()

	if e := r.SelectByKey(1)(state); e == nil || e["code"] != "CT1" {
		t.Fatalf("SelectByKey(1) = %v", e)
	}
	if e := r.SelectByKey(3)(state); e != nil {
		t.Fatalf("SelectByKey(3) = %v, want nil", e)
	}
	if e := r.SelectByProp("code")("CT2")(state); e == nil || e["id"] != 2 {
		t.Fatalf("SelectByProp = %v", e)
	}
	if all := r.SelectAllByProp("year")(1)(state); !reflect.DeepEqual(ids(all), []any{1, 2}) {
		t.Fatalf("SelectAllByProp = %v", all)
	}
	if none := r.SelectAllByProp("year")(2)(state); none == nil || len(none) != 0 {
		t.Fatalf("SelectAllByProp with no match should be empty, got %v", none)
	}
	count := Select(r, func(c Collection) int { return len(c) })
	if count(state) != 2 {
		t.Fatalf("Select count = %d", count(state))
	}
}

func TestSelectByPropUncomparableValues(t *testing.T) {
	r := mustResource(t, "questions", KeyField("id"))
	st := newTestStore(t, r)
	mustDispatch(t, st, r.Load(Entity{"id": 1, "path": []any{int64(1)}}, Entity{"id": 2, "path": "1.2"}))
	state := st.State()

	if e := r.SelectByProp("path")([]any{int64(2)})(state); e != nil {
		t.Fatalf("SelectByProp with a slice value = %v, want nil", e)
	}
	if all := r.SelectAllByProp("path")([]any{int64(1)})(state); len(all) != 0 {
		t.Fatalf("SelectAllByProp with a slice value = %v, want empty", all)
	}
	if e := r.SelectByProp("path")("1.2")(state); e == nil || e["id"] != 2 {
		t.Fatalf("SelectByProp on a string path = %v", e)
	}
}

func TestProducerCleanerReturningNil(t *testing.T) {
	r := mustResource(t, "papers", KeyField("id"))
	r.AddProducer("GET_COURSE", Path("papers"), CleanFunc(func(e Entity) Entity {
		if e["id"] == 2 {
			return nil
		}
		return e
	}))
	payload := Entity{"papers": []any{Entity{"id": 1}, Entity{"id": 2}}}
	_, err := r.Reduce(Collection{}, Action{Type: "GET_COURSE", Payload: payload})
	var me *MergeError
	if !errors.As(err, &me) || !errors.Is(err, ErrMerge) {
		t.Fatalf("expected merge error, got %v", err)
	}
	if me.Index != 1 || !strings.Contains(err.Error(), "producer cleaner returned nil") {
		t.Fatalf("error does not name the cleaner or entity: %v", err)
	}
}

func TestOnLoadNamesBrokenStoredEntity(t *testing.T) {
	r := mustResource(t, "courses", KeyField("id"))
	_, err := r.OnLoad(Collection{{"id": 1}, {"code": "CT1"}}, []Entity{{"id": 3}})
	var me *MergeError
	if !errors.As(err, &me) || me.Index != 1 || !strings.Contains(me.Reason, "stored") {
		t.Fatalf("expected error naming stored entity 1, got %v", err)
	}
}
