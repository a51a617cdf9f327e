package syncer

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/daviddao/potluck/pkg/activity"
	"github.com/daviddao/potluck/pkg/apperr"
	"github.com/daviddao/potluck/pkg/clock"
	"github.com/daviddao/potluck/pkg/model"
	"github.com/daviddao/potluck/pkg/store"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *store.Store
	clock *clock.Fake
	log   *activity.Log
	agg   *Aggregator
}

func newFixture(t *testing.T, public bool) *fixture {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	doc := &model.Document{ID: "doc1", Title: "Lasagna", AuthorID: "alice", AuthorName: "Alice", IsPublic: public, CreatedAt: start, UpdatedAt: start}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	c := model.Collaborator{UserID: "bob", Email: "bob@x.com", Name: "Bob", Role: model.RoleCollaborator, AddedAt: start, AddedBy: "alice"}
	if err := s.AppendCollaborator(ctx, "doc1", c); err != nil {
		t.Fatal(err)
	}
	fc := clock.NewFake(start)
	l := activity.New(s, fc)
	return &fixture{store: s, clock: fc, log: l, agg: New(s, l, fc)}
}

var (
	alice   = model.Identity{UserID: "alice", Name: "Alice", Email: "alice@x.com"}
	bob     = model.Identity{UserID: "bob", Name: "Bob", Email: "BOB@x.com"}
	mallory = model.Identity{UserID: "mallory", Name: "Mallory", Email: "m@x.com"}
)

func TestSnapshotAuthorization(t *testing.T) {
	tests := []struct {
		name      string
		public    bool
		requester model.Identity
		want      apperr.Code
	}{
		{"author on private", false, alice, ""},
		{"collaborator on private", false, bob, ""},
		{"outsider on private", false, mallory, apperr.CodeForbidden},
		{"outsider on public", true, mallory, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.public)
			_, err := f.agg.Snapshot(context.Background(), "doc1", tt.requester)
			if got := apperr.GetCode(err); err != nil && got != tt.want || err == nil && tt.want != "" {
				t.Fatalf("err = %v, want code %q", err, tt.want)
			}
		})
	}
}

func TestSnapshotUnknownDocument(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.agg.Snapshot(context.Background(), "nope", alice)
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestSnapshotComposition(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		user, name := "alice", "Alice"
		if i%3 == 0 {
			user, name = "bob", "Bob"
		}
		if _, err := f.log.Append(ctx, "doc1", user, name, fmt.Sprintf("step-%d", i), ""); err != nil {
			t.Fatal(err)
		}
		f.clock.Advance(time.Second)
	}
	f.clock.Advance(time.Minute)

	snap, err := f.agg.Snapshot(ctx, "doc1", bob)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Document.ID != "doc1" || len(snap.Document.Collaborators) != 1 {
		t.Fatalf("document = %+v", snap.Document)
	}
	if len(snap.RecentActivity) != model.RecentActivityLimit {
		t.Fatalf("recent = %d, want %d", len(snap.RecentActivity), model.RecentActivityLimit)
	}
	if snap.RecentActivity[0].Action != "step-11" {
		t.Fatalf("newest = %s, want step-11", snap.RecentActivity[0].Action)
	}
	if len(snap.CollaboratorActivity) != 2 {
		t.Fatalf("collaborator activity = %+v", snap.CollaboratorActivity)
	}
	if snap.CollaboratorActivity["bob"].Action != "step-9" || snap.CollaboratorActivity["alice"].Action != "step-11" {
		t.Fatalf("latest per user = %+v", snap.CollaboratorActivity)
	}
	if !snap.SyncTimestamp.Equal(f.clock.Now()) {
		t.Fatalf("sync timestamp = %v, want %v", snap.SyncTimestamp, f.clock.Now())
	}
}

func TestSnapshotIsReadOnly(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.log.Append(ctx, "doc1", "bob", "Bob", "edit", "")
	before, _ := f.store.GetDocument(ctx, "doc1")
	for i := 0; i < 3; i++ {
		if _, err := f.agg.Snapshot(ctx, "doc1", mallory); err != nil {
			t.Fatal(err)
		}
	}
	after, _ := f.store.GetDocument(ctx, "doc1")
	if !after.UpdatedAt.Equal(before.UpdatedAt) || f.store.CountActivity(ctx, "doc1") != 1 {
		t.Fatal("snapshot must not mutate document or activity")
	}
}
