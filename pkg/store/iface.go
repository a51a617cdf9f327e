// iface.go defines the narrow store interfaces each component depends on.
//
// The concrete *Store satisfies all of them. Components accept only the
// slice they need (the ledger never sees presence, the aggregator never
// writes), which keeps ownership of each record type explicit and lets
// tests inject failing fakes.
package store

import (
	"context"
	"time"

	"github.com/daviddao/potluck/pkg/model"
)

// InvitationStore is the persistence owned by the invitation ledger.
type InvitationStore interface {
	// InsertInvitation stores a new invitation.
	InsertInvitation(ctx context.Context, inv *model.Invitation) error

	// GetInvitation returns ErrNotFound for unknown IDs.
	GetInvitation(ctx context.Context, id string) (*model.Invitation, error)

	// TransitionInvitation returns ErrNotPending when the invitation has
	// already left the pending state.
	TransitionInvitation(ctx context.Context, id string, status model.InvitationStatus, respondedAt time.Time) error

	// ListPendingInvitations lists unexpired pending invitations, newest first.
	ListPendingInvitations(ctx context.Context, email string, now time.Time) ([]model.Invitation, error)

	// ListDocumentInvitations lists all invitations for a document, newest first.
	ListDocumentInvitations(ctx context.Context, documentID string) ([]model.Invitation, error)
}

// PresenceStore is the persistence owned by the presence tracker.
type PresenceStore interface {
	UpsertPresence(ctx context.Context, p model.Presence) error
	ListPresence(ctx context.Context, documentID string, since time.Time, excludeUserID string) ([]model.Presence, error)
	DeletePresenceBefore(ctx context.Context, before time.Time) (int64, error)
}

// ActivityStore is the persistence owned by the activity log.
type ActivityStore interface {
	InsertActivity(ctx context.Context, a *model.Activity) error
	ListRecentActivity(ctx context.Context, documentID string, limit int) ([]model.Activity, error)
	LatestActivityPerUser(ctx context.Context, documentID string) (map[string]model.LastActivity, error)
	DeleteActivityBefore(ctx context.Context, before time.Time) (int64, error)
}

// DocumentReader is the read side of the external document store.
type DocumentReader interface {
	// GetDocument returns ErrNotFound for unknown IDs.
	GetDocument(ctx context.Context, id string) (*model.Document, error)
}

// DocumentStore is the document store capability granted to the gateway:
// read, and append one collaborator.
type DocumentStore interface {
	DocumentReader

	// AppendCollaborator returns ErrDuplicate when the email is already a
	// collaborator and ErrNotFound for unknown documents.
	AppendCollaborator(ctx context.Context, documentID string, c model.Collaborator) error
}

// UserDirectory resolves registered users.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// StoreInterface is the full set of store operations.
type StoreInterface interface {
	InvitationStore
	PresenceStore
	ActivityStore
	DocumentStore
	UserDirectory

	// CreateUser registers a user; ErrDuplicate if the email is taken.
	CreateUser(ctx context.Context, u *model.User) error

	// CreateDocument inserts a document.
	CreateDocument(ctx context.Context, d *model.Document) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Compile-time check that *Store implements StoreInterface.
var _ StoreInterface = (*Store)(nil)
