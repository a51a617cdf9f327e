// Package gateway coordinates invitations with document membership.
//
// Invite enforces who may invite whom before handing off to the ledger and
// notifier. Respond commits the ledger transition first and only then
// writes membership, so a failed membership write never leaves an
// invitation that can be accepted twice.
package gateway

import (
	"context"
	"errors"
	"log"

	"github.com/daviddao/potluck/pkg/apperr"
	"github.com/daviddao/potluck/pkg/ledger"
	"github.com/daviddao/potluck/pkg/model"
	"github.com/daviddao/potluck/pkg/notify"
	"github.com/daviddao/potluck/pkg/store"
)

// Gateway is the invite/respond coordinator.
type Gateway struct {
	docs     store.DocumentStore
	users    store.UserDirectory
	ledger   *ledger.Ledger
	notifier notify.Notifier
	logger   *log.Logger
}

// Config holds Gateway dependencies.
type Config struct {
	Documents store.DocumentStore
	Users     store.UserDirectory
	Ledger    *ledger.Ledger
	Notifier  notify.Notifier
	Logger    *log.Logger
}

// New returns a Gateway. A nil notifier disables notices.
func New(cfg Config) *Gateway {
	g := &Gateway{
		docs:     cfg.Documents,
		users:    cfg.Users,
		ledger:   cfg.Ledger,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
	}
	if g.notifier == nil {
		g.notifier = notify.Disabled{}
	}
	if g.logger == nil {
		g.logger = log.Default()
	}
	return g
}

// Invite creates an invitation to documentID for invitedEmail on behalf of
// inviter, who must be the document's author.
func (g *Gateway) Invite(ctx context.Context, documentID string, inviter model.Identity, invitedEmail, message string) (model.Invitation, error) {
	email := model.NormalizeEmail(invitedEmail)
	if email == "" {
		return model.Invitation{}, apperr.New(apperr.CodeInvalidArgument, "email is required")
	}

	doc, err := g.loadDocument(ctx, documentID)
	if err != nil {
		return model.Invitation{}, err
	}
	if doc.AuthorID != inviter.UserID {
		return model.Invitation{}, apperr.New(apperr.CodeForbidden, "only the author can invite collaborators")
	}

	invitee, err := g.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Invitation{}, apperr.Newf(apperr.CodeNotFound, "no registered user with email %s", email)
		}
		return model.Invitation{}, apperr.Wrap(apperr.CodeInternal, "look up invitee", err)
	}
	if doc.HasCollaborator(email) {
		return model.Invitation{}, apperr.Newf(apperr.CodeConflict, "%s is already a collaborator", email)
	}

	inv, err := g.ledger.Create(ctx, ledger.CreateInput{
		DocumentID:   doc.ID,
		InviterID:    inviter.UserID,
		InviterName:  inviter.DisplayName(),
		InvitedEmail: email,
		InvitedName:  invitee.Name,
		Message:      message,
	})
	if err != nil {
		return model.Invitation{}, err
	}

	notice := model.InvitationNotice{
		RecipientEmail: inv.InvitedEmail,
		DocumentTitle:  doc.Title,
		InviterName:    inv.InviterName,
		Message:        inv.Message,
		InvitationID:   inv.ID,
		DocumentID:     doc.ID,
	}
	if err := g.notifier.NotifyInvitation(ctx, notice); err != nil {
		nerr := apperr.Wrap(apperr.CodeNotificationFailed, "invitation notice not delivered", err)
		g.logger.Printf("lvl=warn component=gateway invitation=%s to=%s err=%q", inv.ID, inv.InvitedEmail, nerr)
	}
	return inv, nil
}

// Respond applies action to invitationID for responder. Accepting adds the
// responder to the document's collaborators.
func (g *Gateway) Respond(ctx context.Context, invitationID string, responder model.Identity, action model.ResponseAction) (model.Invitation, error) {
	target, ok := action.TargetStatus()
	if !ok {
		return model.Invitation{}, apperr.Newf(apperr.CodeInvalidArgument, "unknown action %q", action)
	}

	inv, err := g.ledger.Transition(ctx, invitationID, responder.Email, target)
	if err != nil {
		return model.Invitation{}, err
	}
	if target != model.StatusAccepted {
		return inv, nil
	}

	c := model.Collaborator{
		UserID:  responder.UserID,
		Email:   inv.InvitedEmail,
		Name:    responder.DisplayName(),
		Role:    model.RoleCollaborator,
		AddedAt: *inv.RespondedAt,
		AddedBy: inv.InviterID,
	}
	err = g.docs.AppendCollaborator(ctx, inv.DocumentID, c)
	switch {
	case err == nil, errors.Is(err, store.ErrDuplicate):
		return inv, nil
	default:
		g.logger.Printf("lvl=error component=gateway invitation=%s document=%s msg=\"membership write failed after accept\" err=%q",
			inv.ID, inv.DocumentID, err)
		return inv, apperr.Wrap(apperr.CodeMembershipWriteFailed,
			"invitation accepted but collaborator access could not be granted; contact support", err)
	}
}

// DocumentInvitations lists every invitation for documentID. Only the
// author may see it.
func (g *Gateway) DocumentInvitations(ctx context.Context, documentID string, requester model.Identity) ([]model.Invitation, error) {
	doc, err := g.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.AuthorID != requester.UserID {
		return nil, apperr.New(apperr.CodeForbidden, "only the author can view invitations")
	}
	return g.ledger.ListForDocument(ctx, documentID)
}

// PendingInvitations lists actionable invitations addressed to requester.
func (g *Gateway) PendingInvitations(ctx context.Context, requester model.Identity) ([]model.Invitation, error) {
	return g.ledger.ListPendingForEmail(ctx, requester.Email)
}

func (g *Gateway) loadDocument(ctx context.Context, id string) (*model.Document, error) {
	doc, err := g.docs.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, "document %s not found", id)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "load document", err)
	}
	return doc, nil
}
