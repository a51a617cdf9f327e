package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/daviddao/potluck/pkg/model"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustDocument(t *testing.T, s *Store, id, authorID string) {
	t.Helper()
	d := &model.Document{
		ID: id, Title: "Pancakes", AuthorID: authorID, AuthorName: authorID,
		IsPublic: false, CreatedAt: t0, UpdatedAt: t0,
	}
	if err := s.CreateDocument(context.Background(), d); err != nil {
		t.Fatalf("CreateDocument(%s): %v", id, err)
	}
}

func pendingInvitation(id, docID, email string, created time.Time) *model.Invitation {
	return &model.Invitation{
		ID: id, DocumentID: docID, InviterID: "alice", InviterName: "Alice",
		InvitedEmail: email, InvitedName: "Bob", Status: model.StatusPending,
		CreatedAt: created, ExpiresAt: created.Add(model.InvitationTTL),
	}
}

// --- User tests ---

func TestCreateUser_NormalizesEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := &model.User{ID: "bob", Email: " Bob@X.com ", Name: "Bob", CreatedAt: t0}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	got, err := s.FindUserByEmail(ctx, "BOB@x.COM")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if got.ID != "bob" || got.Email != "bob@x.com" {
		t.Fatalf("got %+v, want id bob email bob@x.com", got)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, t0)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.CreateUser(ctx, &model.User{ID: "u1", Email: "a@x.com", Name: "A", CreatedAt: t0}); err != nil {
		t.Fatal(err)
	}
	err := s.CreateUser(ctx, &model.User{ID: "u2", Email: "A@x.com", Name: "A2", CreatedAt: t0})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetUser(context.Background(), "nobody"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- Document tests ---

func TestGetDocument_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetDocument(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendCollaborator(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustDocument(t, s, "doc1", "alice")

	c := model.Collaborator{
		UserID: "bob", Email: "Bob@x.com", Name: "Bob",
		Role: model.RoleCollaborator, AddedAt: t0.Add(time.Hour), AddedBy: "alice",
	}
	if err := s.AppendCollaborator(ctx, "doc1", c); err != nil {
		t.Fatalf("AppendCollaborator: %v", err)
	}

	doc, err := s.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Collaborators) != 1 {
		t.Fatalf("got %d collaborators, want 1", len(doc.Collaborators))
	}
	got := doc.Collaborators[0]
	if got.Email != "bob@x.com" || got.AddedBy != "alice" || got.Role != model.RoleCollaborator {
		t.Fatalf("unexpected collaborator %+v", got)
	}
	if !doc.UpdatedAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("updated_at = %v, want bumped to added_at", doc.UpdatedAt)
	}
}

func TestAppendCollaborator_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustDocument(t, s, "doc1", "alice")
	c := model.Collaborator{UserID: "bob", Email: "bob@x.com", Name: "Bob", Role: model.RoleCollaborator, AddedAt: t0, AddedBy: "alice"}
	if err := s.AppendCollaborator(ctx, "doc1", c); err != nil {
		t.Fatal(err)
	}
	c.Email = "BOB@X.COM"
	if err := s.AppendCollaborator(ctx, "doc1", c); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	doc, _ := s.GetDocument(ctx, "doc1")
	if len(doc.Collaborators) != 1 {
		t.Fatalf("duplicate append must not add a row, got %d", len(doc.Collaborators))
	}
}

func TestAppendCollaborator_UnknownDocument(t *testing.T) {
	s := newTestStore(t)
	c := model.Collaborator{UserID: "bob", Email: "bob@x.com", Role: model.RoleCollaborator, AddedAt: t0, AddedBy: "alice"}
	if err := s.AppendCollaborator(context.Background(), "nope", c); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- Invitation tests ---

func TestInsertAndGetInvitation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	inv := pendingInvitation("inv1", "doc1", "Bob@x.com", t0)
	inv.Message = "join me"
	if err := s.InsertInvitation(ctx, inv); err != nil {
		t.Fatalf("InsertInvitation: %v", err)
	}
	got, err := s.GetInvitation(ctx, "inv1")
	if err != nil {
		t.Fatalf("GetInvitation: %v", err)
	}
	if got.InvitedEmail != "bob@x.com" {
		t.Fatalf("invited_email = %q, want normalized", got.InvitedEmail)
	}
	if got.Status != model.StatusPending || got.RespondedAt != nil {
		t.Fatalf("unexpected status/responded_at: %s %v", got.Status, got.RespondedAt)
	}
	if !got.CreatedAt.Equal(t0) || got.ExpiresAt.Sub(got.CreatedAt) != model.InvitationTTL {
		t.Fatalf("timestamps did not round-trip: %v %v", got.CreatedAt, got.ExpiresAt)
	}
	if got.Message != "join me" {
		t.Fatalf("message = %q", got.Message)
	}
}

func TestGetInvitation_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetInvitation(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionInvitation_OnlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.InsertInvitation(ctx, pendingInvitation("inv1", "doc1", "bob@x.com", t0)); err != nil {
		t.Fatal(err)
	}
	at := t0.Add(time.Minute)
	if err := s.TransitionInvitation(ctx, "inv1", model.StatusAccepted, at); err != nil {
		t.Fatalf("first transition: %v", err)
	}
	if err := s.TransitionInvitation(ctx, "inv1", model.StatusDeclined, at); !errors.Is(err, ErrNotPending) {
		t.Fatalf("second transition: expected ErrNotPending, got %v", err)
	}
	got, _ := s.GetInvitation(ctx, "inv1")
	if got.Status != model.StatusAccepted {
		t.Fatalf("status = %s, want accepted", got.Status)
	}
	if got.RespondedAt == nil || !got.RespondedAt.Equal(at) {
		t.Fatalf("responded_at = %v, want %v", got.RespondedAt, at)
	}
}

func TestTransitionInvitation_ConcurrentSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.InsertInvitation(ctx, pendingInvitation("inv1", "doc1", "bob@x.com", t0)); err != nil {
		t.Fatal(err)
	}

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		status := model.StatusAccepted
		if i%2 == 1 {
			status = model.StatusDeclined
		}
		wg.Add(1)
		go func(st model.InvitationStatus) {
			defer wg.Done()
			results <- s.TransitionInvitation(ctx, "inv1", st, t0.Add(time.Second))
		}(status)
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrNotPending):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != racers-1 {
		t.Fatalf("wins=%d losses=%d, want exactly one winner", wins, losses)
	}
}

func TestListPendingInvitations_FiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insert := func(inv *model.Invitation) {
		t.Helper()
		if err := s.InsertInvitation(ctx, inv); err != nil {
			t.Fatal(err)
		}
	}
	insert(pendingInvitation("old", "doc1", "bob@x.com", t0))
	insert(pendingInvitation("new", "doc2", "bob@x.com", t0.Add(time.Hour)))
	insert(pendingInvitation("expired", "doc3", "bob@x.com", t0.Add(-8*24*time.Hour)))
	insert(pendingInvitation("other", "doc1", "carol@x.com", t0))
	insert(pendingInvitation("answered", "doc4", "bob@x.com", t0))
	if err := s.TransitionInvitation(ctx, "answered", model.StatusDeclined, t0); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListPendingInvitations(ctx, "BOB@x.com", t0.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d pending, want 2: %+v", len(got), got)
	}
	if got[0].ID != "new" || got[1].ID != "old" {
		t.Fatalf("order = [%s %s], want [new old]", got[0].ID, got[1].ID)
	}
}

func TestListDocumentInvitations_AllStatuses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		inv := pendingInvitation(fmt.Sprintf("inv%d", i), "doc1", "bob@x.com", t0.Add(time.Duration(i)*time.Minute))
		if err := s.InsertInvitation(ctx, inv); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.TransitionInvitation(ctx, "inv1", model.StatusAccepted, t0); err != nil {
		t.Fatal(err)
	}
	got, err := s.ListDocumentInvitations(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d, want 3", len(got))
	}
	if got[0].ID != "inv2" || got[2].ID != "inv0" {
		t.Fatalf("not newest first: %s..%s", got[0].ID, got[2].ID)
	}
	if s.CountInvitations(ctx, "doc1") != 3 {
		t.Fatalf("CountInvitations = %d", s.CountInvitations(ctx, "doc1"))
	}
}

// --- Presence tests ---

func TestUpsertPresence_SingleRecordPerPair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		p := model.Presence{DocumentID: "doc1", UserID: "bob", UserName: "Bob", LastSeen: t0.Add(time.Duration(i) * time.Second)}
		if err := s.UpsertPresence(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListPresence(ctx, "doc1", t0.Add(-time.Hour), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if !got[0].LastSeen.Equal(t0.Add(2 * time.Second)) {
		t.Fatalf("last_seen = %v", got[0].LastSeen)
	}
}

func TestUpsertPresence_OlderWriteIgnored(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newer := model.Presence{DocumentID: "doc1", UserID: "bob", UserName: "Bob", LastSeen: t0.Add(time.Minute)}
	older := model.Presence{DocumentID: "doc1", UserID: "bob", UserName: "Bobby", LastSeen: t0}
	if err := s.UpsertPresence(ctx, newer); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPresence(ctx, older); err != nil {
		t.Fatal(err)
	}
	got, _ := s.ListPresence(ctx, "doc1", t0.Add(-time.Hour), "")
	if len(got) != 1 || !got[0].LastSeen.Equal(newer.LastSeen) || got[0].UserName != "Bob" {
		t.Fatalf("older heartbeat overwrote newer: %+v", got)
	}
}

func TestListPresence_SinceAndExclude(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, p := range []model.Presence{
		{DocumentID: "doc1", UserID: "alice", UserName: "Alice", LastSeen: t0},
		{DocumentID: "doc1", UserID: "bob", UserName: "Bob", LastSeen: t0.Add(-5 * time.Minute)},
		{DocumentID: "doc1", UserID: "carol", UserName: "Carol", LastSeen: t0},
		{DocumentID: "doc2", UserID: "dave", UserName: "Dave", LastSeen: t0},
	} {
		if err := s.UpsertPresence(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListPresence(ctx, "doc1", t0.Add(-2*time.Minute), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].UserID != "carol" {
		t.Fatalf("got %+v, want only carol", got)
	}
}

func TestDeletePresenceBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.UpsertPresence(ctx, model.Presence{DocumentID: "doc1", UserID: "old", UserName: "Old", LastSeen: t0.Add(-time.Hour)})
	s.UpsertPresence(ctx, model.Presence{DocumentID: "doc1", UserID: "new", UserName: "New", LastSeen: t0})
	n, err := s.DeletePresenceBefore(ctx, t0.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("deleted %d, want 1", n)
	}
	got, _ := s.ListPresence(ctx, "doc1", time.Time{}, "")
	if len(got) != 1 || got[0].UserID != "new" {
		t.Fatalf("remaining = %+v", got)
	}
}

// --- Activity tests ---

func insertActivity(t *testing.T, s *Store, id, user, action string, ts time.Time) {
	t.Helper()
	a := &model.Activity{ID: id, DocumentID: "doc1", UserID: user, UserName: user, Action: action, Timestamp: ts}
	if err := s.InsertActivity(context.Background(), a); err != nil {
		t.Fatalf("InsertActivity(%s): %v", id, err)
	}
}

func TestListRecentActivity_NewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 15; i++ {
		insertActivity(t, s, fmt.Sprintf("e%02d", i), "bob", "edit", t0.Add(time.Duration(i)*time.Second))
	}
	got, err := s.ListRecentActivity(context.Background(), "doc1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d, want 10", len(got))
	}
	if got[0].ID != "e14" || got[9].ID != "e05" {
		t.Fatalf("window = %s..%s, want e14..e05", got[0].ID, got[9].ID)
	}
}

func TestListRecentActivity_TieBrokenByInsertion(t *testing.T) {
	s := newTestStore(t)
	insertActivity(t, s, "first", "bob", "edit", t0)
	insertActivity(t, s, "second", "carol", "edit", t0)
	got, _ := s.ListRecentActivity(context.Background(), "doc1", 10)
	if len(got) != 2 || got[0].ID != "second" {
		t.Fatalf("equal timestamps should list the later insert first, got %+v", got)
	}
}

func TestLatestActivityPerUser(t *testing.T) {
	s := newTestStore(t)
	insertActivity(t, s, "b1", "bob", "edit", t0)
	insertActivity(t, s, "b2", "bob", "complete", t0.Add(2*time.Minute))
	insertActivity(t, s, "b3", "bob", "edit", t0.Add(time.Minute))
	insertActivity(t, s, "c1", "carol", "view", t0)

	got, err := s.LatestActivityPerUser(context.Background(), "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d users, want 2", len(got))
	}
	if got["bob"].Action != "complete" || !got["bob"].Timestamp.Equal(t0.Add(2*time.Minute)) {
		t.Fatalf("bob latest = %+v", got["bob"])
	}
	if got["carol"].Action != "view" {
		t.Fatalf("carol latest = %+v", got["carol"])
	}
}

func TestLatestActivityPerUser_TieIsStable(t *testing.T) {
	s := newTestStore(t)
	insertActivity(t, s, "x1", "bob", "edit", t0)
	insertActivity(t, s, "x2", "bob", "rename", t0)
	for i := 0; i < 3; i++ {
		got, _ := s.LatestActivityPerUser(context.Background(), "doc1")
		if got["bob"].Action != "rename" {
			t.Fatalf("run %d: tie should resolve to the later insert, got %+v", i, got["bob"])
		}
	}
}

func TestDeleteActivityBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertActivity(t, s, "old", "bob", "edit", t0.Add(-48*time.Hour))
	insertActivity(t, s, "new", "bob", "edit", t0)
	n, err := s.DeleteActivityBefore(ctx, t0.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || s.CountActivity(ctx, "doc1") != 1 {
		t.Fatalf("deleted=%d remaining=%d, want 1/1", n, s.CountActivity(ctx, "doc1"))
	}
}
