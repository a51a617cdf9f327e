package activity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/daviddao/potluck/pkg/apperr"
	"github.com/daviddao/potluck/pkg/clock"
	"github.com/daviddao/potluck/pkg/store"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestLog(t *testing.T, opts ...Option) (*Log, *clock.Fake, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	fc := clock.NewFake(start)
	return New(s, fc, opts...), fc, s
}

func TestAppendStampsNow(t *testing.T) {
	l, fc, _ := newTestLog(t)
	fc.Advance(time.Hour)
	a, err := l.Append(context.Background(), "doc1", "bob", "Bob", "edit", "changed step 2")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == "" || !a.Timestamp.Equal(start.Add(time.Hour)) {
		t.Fatalf("unexpected event %+v", a)
	}
}

func TestAppendRejectsEmptyAction(t *testing.T) {
	l, _, _ := newTestLog(t)
	for _, action := range []string{"", "   "} {
		_, err := l.Append(context.Background(), "doc1", "bob", "Bob", action, "")
		if !apperr.IsCode(err, apperr.CodeInvalidArgument) {
			t.Fatalf("action %q: expected INVALID_ARGUMENT, got %v", action, err)
		}
	}
}

func TestRecentNewestFirst(t *testing.T) {
	l, fc, _ := newTestLog(t)
	ctx := context.Background()
	for _, action := range []string{"view", "edit", "comment"} {
		if _, err := l.Append(ctx, "doc1", "bob", "Bob", action, ""); err != nil {
			t.Fatal(err)
		}
		fc.Advance(time.Second)
	}
	evs, err := l.Recent(ctx, "doc1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 2 || evs[0].Action != "comment" || evs[1].Action != "edit" {
		t.Fatalf("recent = %+v", evs)
	}
}

func TestLatestPerUserOneEntryEach(t *testing.T) {
	l, fc, _ := newTestLog(t)
	ctx := context.Background()
	users := []string{"bob", "carol", "bob", "bob", "carol", "dave"}
	for i, u := range users {
		if _, err := l.Append(ctx, "doc1", u, u, "step", ""); err != nil {
			t.Fatal(err)
		}
		if i < len(users)-1 {
			fc.Advance(time.Minute)
		}
	}
	latest, err := l.LatestPerUser(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 3 {
		t.Fatalf("got %d entries, want 3 distinct users", len(latest))
	}
	want := map[string]time.Time{
		"bob":   start.Add(3 * time.Minute),
		"carol": start.Add(4 * time.Minute),
		"dave":  start.Add(5 * time.Minute),
	}
	for user, ts := range want {
		if !latest[user].Timestamp.Equal(ts) {
			t.Errorf("%s latest = %v, want %v", user, latest[user].Timestamp, ts)
		}
	}
}

func TestDisabledLogIsNoop(t *testing.T) {
	l, _, s := newTestLog(t, WithEnabled(false))
	a, err := l.Append(context.Background(), "doc1", "bob", "Bob", "edit", "")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != "" || s.CountActivity(context.Background(), "doc1") != 0 {
		t.Fatalf("disabled log recorded %+v", a)
	}
}

func TestPrune(t *testing.T) {
	l, fc, s := newTestLog(t)
	ctx := context.Background()
	l.Append(ctx, "doc1", "bob", "Bob", "old", "")
	fc.Advance(31 * 24 * time.Hour)
	l.Append(ctx, "doc1", "bob", "Bob", "new", "")

	if n, _ := l.Prune(ctx, 0); n != 0 {
		t.Fatalf("zero retention pruned %d", n)
	}
	n, err := l.Prune(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || s.CountActivity(ctx, "doc1") != 1 {
		t.Fatalf("pruned %d, remaining %d", n, s.CountActivity(ctx, "doc1"))
	}
}
