// Package ledger owns invitation records and their status transitions.
//
// An invitation leaves the pending state at most once. Transition validates
// existence, ownership, expiry and status in that order, then commits with a
// conditional update so that racing responders produce exactly one winner.
package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/daviddao/potluck/pkg/apperr"
	"github.com/daviddao/potluck/pkg/clock"
	"github.com/daviddao/potluck/pkg/model"
	"github.com/daviddao/potluck/pkg/store"
)

// IDGenerator returns a fresh invitation ID.
type IDGenerator func() string

// Ledger creates and transitions invitations.
type Ledger struct {
	store store.InvitationStore
	clock clock.Clock
	newID IDGenerator
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithIDGenerator overrides the UUID generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(l *Ledger) { l.newID = gen }
}

// New returns a Ledger over s. A nil clock means the wall clock.
func New(s store.InvitationStore, c clock.Clock, opts ...Option) *Ledger {
	l := &Ledger{store: s, clock: clock.OrReal(c), newID: uuid.NewString}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateInput describes a new invitation.
type CreateInput struct {
	DocumentID   string
	InviterID    string
	InviterName  string
	InvitedEmail string
	InvitedName  string
	Message      string
}

// Create stores a pending invitation expiring InvitationTTL from now.
func (l *Ledger) Create(ctx context.Context, in CreateInput) (model.Invitation, error) {
	now := l.clock.Now()
	inv := model.Invitation{
		ID:           l.newID(),
		DocumentID:   in.DocumentID,
		InviterID:    in.InviterID,
		InviterName:  in.InviterName,
		InvitedEmail: model.NormalizeEmail(in.InvitedEmail),
		InvitedName:  in.InvitedName,
		Message:      in.Message,
		Status:       model.StatusPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(model.InvitationTTL),
	}
	if err := l.store.InsertInvitation(ctx, &inv); err != nil {
		return model.Invitation{}, apperr.Wrap(apperr.CodeInternal, "store invitation", err)
	}
	return inv, nil
}

// Get returns the invitation with id.
func (l *Ledger) Get(ctx context.Context, id string) (model.Invitation, error) {
	inv, err := l.store.GetInvitation(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Invitation{}, apperr.Newf(apperr.CodeNotFound, "invitation %s not found", id)
		}
		return model.Invitation{}, apperr.Wrap(apperr.CodeInternal, "load invitation", err)
	}
	return *inv, nil
}

// Transition moves the invitation to target on behalf of responderEmail
// and returns the updated record.
func (l *Ledger) Transition(ctx context.Context, id, responderEmail string, target model.InvitationStatus) (model.Invitation, error) {
	if !target.Terminal() {
		return model.Invitation{}, apperr.Newf(apperr.CodeInvalidArgument, "cannot transition invitation to %q", target)
	}

	inv, err := l.Get(ctx, id)
	if err != nil {
		return model.Invitation{}, err
	}
	if !model.SameEmail(inv.InvitedEmail, responderEmail) {
		return model.Invitation{}, apperr.New(apperr.CodeForbidden, "invitation is addressed to a different email")
	}
	now := l.clock.Now()
	if inv.Expired(now) {
		return model.Invitation{}, apperr.New(apperr.CodeExpired, "invitation has expired")
	}
	if inv.Status != model.StatusPending {
		return model.Invitation{}, apperr.Newf(apperr.CodeAlreadyResponded, "invitation already %s", inv.Status)
	}

	if err := l.store.TransitionInvitation(ctx, id, target, now); err != nil {
		if errors.Is(err, store.ErrNotPending) {
			return model.Invitation{}, apperr.New(apperr.CodeAlreadyResponded, "invitation already responded to")
		}
		return model.Invitation{}, apperr.Wrap(apperr.CodeInternal, "update invitation", err)
	}
	inv.Status = target
	inv.RespondedAt = &now
	return inv, nil
}

// ListPendingForEmail returns actionable invitations addressed to email,
// newest first.
func (l *Ledger) ListPendingForEmail(ctx context.Context, email string) ([]model.Invitation, error) {
	invs, err := l.store.ListPendingInvitations(ctx, email, l.clock.Now())
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list pending invitations", err)
	}
	return invs, nil
}

// ListForDocument returns every invitation ever issued for documentID.
func (l *Ledger) ListForDocument(ctx context.Context, documentID string) ([]model.Invitation, error) {
	invs, err := l.store.ListDocumentInvitations(ctx, documentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list document invitations", err)
	}
	return invs, nil
}
