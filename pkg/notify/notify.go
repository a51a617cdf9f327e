// Package notify delivers invitation notices to invitees.
//
// Delivery is advisory: callers log a failed notice and move on, since the
// invitee can always find the invitation in their pending list.
package notify

import (
	"context"
	"errors"
	"log"

	"github.com/daviddao/potluck/pkg/model"
)

// ErrNotConfigured is returned by notifiers that cannot send anything.
var ErrNotConfigured = errors.New("notify: email delivery is not configured")

// Notifier tells an invitee about a new invitation.
type Notifier interface {
	NotifyInvitation(ctx context.Context, n model.InvitationNotice) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n model.InvitationNotice) error

func (f NotifierFunc) NotifyInvitation(ctx context.Context, n model.InvitationNotice) error {
	return f(ctx, n)
}

// Disabled drops every notice and reports ErrNotConfigured.
type Disabled struct{}

func (Disabled) NotifyInvitation(context.Context, model.InvitationNotice) error {
	return ErrNotConfigured
}

// Log writes notices to a logger instead of sending them. It is used when
// SMTP is not configured so development setups still show the links.
type Log struct {
	Logger   *log.Logger
	Branding Branding
}

func (l Log) NotifyInvitation(_ context.Context, n model.InvitationNotice) error {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	links := l.Branding.Links(n)
	logger.Printf("lvl=info component=notify msg=\"invitation notice\" to=%s document=%s invitation=%s accept=%s",
		n.RecipientEmail, n.DocumentID, n.InvitationID, links.Accept)
	return nil
}
