// Package collab is the inbound boundary of the collaboration core.
//
// Every method takes the caller's identity explicitly. A nil identity is
// rejected with UNAUTHENTICATED before any other work happens.
package collab

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/daviddao/potluck/pkg/activity"
	"github.com/daviddao/potluck/pkg/apperr"
	"github.com/daviddao/potluck/pkg/gateway"
	"github.com/daviddao/potluck/pkg/model"
	"github.com/daviddao/potluck/pkg/presence"
	"github.com/daviddao/potluck/pkg/syncer"
)

const tracerName = "github.com/daviddao/potluck/pkg/collab"

// Service wires the collaboration components behind one API.
type Service struct {
	gateway  *gateway.Gateway
	presence *presence.Tracker
	activity *activity.Log
	syncer   *syncer.Aggregator
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider traces through tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

// New returns a Service backed by the given components.
func New(gw *gateway.Gateway, pt *presence.Tracker, al *activity.Log, agg *syncer.Aggregator, opts ...Option) *Service {
	s := &Service{gateway: gw, presence: pt, activity: al, syncer: agg, tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) start(ctx context.Context, op string, caller *model.Identity, attrs ...attribute.KeyValue) (context.Context, trace.Span, error) {
	ctx, span := s.tracer.Start(ctx, "collab."+op, trace.WithAttributes(attrs...))
	if caller == nil || caller.UserID == "" {
		err := apperr.New(apperr.CodeUnauthenticated, "authentication required")
		end(span, err)
		return ctx, span, err
	}
	span.SetAttributes(attribute.String("potluck.user_id", caller.UserID))
	return ctx, span, nil
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.GetCode(err)))
	}
	span.End()
}

// CreateInvitation invites invitedEmail to documentID.
func (s *Service) CreateInvitation(ctx context.Context, documentID string, inviter *model.Identity, invitedEmail, message string) (inv model.Invitation, err error) {
	ctx, span, err := s.start(ctx, "CreateInvitation", inviter, attribute.String("potluck.document_id", documentID))
	if err != nil {
		return model.Invitation{}, err
	}
	defer func() { end(span, err) }()
	return s.gateway.Invite(ctx, documentID, *inviter, invitedEmail, message)
}

// RespondInvitation accepts or declines invitationID.
func (s *Service) RespondInvitation(ctx context.Context, invitationID string, responder *model.Identity, action model.ResponseAction) (inv model.Invitation, err error) {
	ctx, span, err := s.start(ctx, "RespondInvitation", responder,
		attribute.String("potluck.invitation_id", invitationID), attribute.String("potluck.action", string(action)))
	if err != nil {
		return model.Invitation{}, err
	}
	defer func() { end(span, err) }()
	return s.gateway.Respond(ctx, invitationID, *responder, action)
}

// ListMyPendingInvitations lists actionable invitations for the caller.
func (s *Service) ListMyPendingInvitations(ctx context.Context, caller *model.Identity) (invs []model.Invitation, err error) {
	ctx, span, err := s.start(ctx, "ListMyPendingInvitations", caller)
	if err != nil {
		return nil, err
	}
	defer func() { end(span, err) }()
	return s.gateway.PendingInvitations(ctx, *caller)
}

// ListDocumentInvitations lists every invitation for documentID.
func (s *Service) ListDocumentInvitations(ctx context.Context, documentID string, requester *model.Identity) (invs []model.Invitation, err error) {
	ctx, span, err := s.start(ctx, "ListDocumentInvitations", requester, attribute.String("potluck.document_id", documentID))
	if err != nil {
		return nil, err
	}
	defer func() { end(span, err) }()
	return s.gateway.DocumentInvitations(ctx, documentID, *requester)
}

// Heartbeat marks the caller active on documentID.
func (s *Service) Heartbeat(ctx context.Context, documentID string, caller *model.Identity) (err error) {
	ctx, span, err := s.start(ctx, "Heartbeat", caller, attribute.String("potluck.document_id", documentID))
	if err != nil {
		return err
	}
	defer func() { end(span, err) }()
	return s.presence.Heartbeat(ctx, documentID, caller.UserID, caller.DisplayName())
}

// ListActivePresence lists users active on documentID. When excludeSelf is
// set the caller is left out.
func (s *Service) ListActivePresence(ctx context.Context, documentID string, caller *model.Identity, excludeSelf bool) (ps []model.Presence, err error) {
	ctx, span, err := s.start(ctx, "ListActivePresence", caller, attribute.String("potluck.document_id", documentID))
	if err != nil {
		return nil, err
	}
	defer func() { end(span, err) }()
	exclude := ""
	if excludeSelf {
		exclude = caller.UserID
	}
	return s.presence.ListActive(ctx, documentID, exclude)
}

// AppendActivity logs action by the caller on documentID.
func (s *Service) AppendActivity(ctx context.Context, documentID string, caller *model.Identity, action, details string) (a model.Activity, err error) {
	ctx, span, err := s.start(ctx, "AppendActivity", caller,
		attribute.String("potluck.document_id", documentID), attribute.String("potluck.action", action))
	if err != nil {
		return model.Activity{}, err
	}
	defer func() { end(span, err) }()
	return s.activity.Append(ctx, documentID, caller.UserID, caller.DisplayName(), action, details)
}

// GetSyncSnapshot returns the polling snapshot of documentID.
func (s *Service) GetSyncSnapshot(ctx context.Context, documentID string, caller *model.Identity) (snap model.Snapshot, err error) {
	ctx, span, err := s.start(ctx, "GetSyncSnapshot", caller, attribute.String("potluck.document_id", documentID))
	if err != nil {
		return model.Snapshot{}, err
	}
	defer func() { end(span, err) }()
	return s.syncer.Snapshot(ctx, documentID, *caller)
}
