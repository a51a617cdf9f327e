// Package activity is the append-only log of what users did to a document.
package activity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daviddao/potluck/pkg/apperr"
	"github.com/daviddao/potluck/pkg/clock"
	"github.com/daviddao/potluck/pkg/model"
	"github.com/daviddao/potluck/pkg/store"
)

// Log appends and reads activity events.
type Log struct {
	store   store.ActivityStore
	clock   clock.Clock
	enabled bool
	newID   func() string
}

// Option configures a Log.
type Option func(*Log)

// WithEnabled turns logging on or off. When off, Append is a no-op and
// reads see whatever was logged before.
func WithEnabled(on bool) Option {
	return func(l *Log) { l.enabled = on }
}

// New returns an enabled Log.
func New(s store.ActivityStore, c clock.Clock, opts ...Option) *Log {
	l := &Log{store: s, clock: clock.OrReal(c), enabled: true, newID: uuid.NewString}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records an event stamped with the current time. The returned
// event is the zero value when logging is disabled.
func (l *Log) Append(ctx context.Context, documentID, userID, userName, action, details string) (model.Activity, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return model.Activity{}, apperr.New(apperr.CodeInvalidArgument, "action is required")
	}
	if documentID == "" {
		return model.Activity{}, apperr.New(apperr.CodeInvalidArgument, "document is required")
	}
	if !l.enabled {
		return model.Activity{}, nil
	}
	a := model.Activity{
		ID:         l.newID(),
		DocumentID: documentID,
		UserID:     userID,
		UserName:   userName,
		Action:     action,
		Details:    details,
		Timestamp:  l.clock.Now(),
	}
	if err := l.store.InsertActivity(ctx, &a); err != nil {
		return model.Activity{}, apperr.Wrap(apperr.CodeInternal, "append activity", err)
	}
	return a, nil
}

// Recent returns up to limit events, newest first.
func (l *Log) Recent(ctx context.Context, documentID string, limit int) ([]model.Activity, error) {
	evs, err := l.store.ListRecentActivity(ctx, documentID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "read recent activity", err)
	}
	return evs, nil
}

// LatestPerUser returns each user's newest event keyed by user ID.
func (l *Log) LatestPerUser(ctx context.Context, documentID string) (map[string]model.LastActivity, error) {
	latest, err := l.store.LatestActivityPerUser(ctx, documentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "read latest activity", err)
	}
	return latest, nil
}

// Prune deletes events older than retention and returns how many went.
// A non-positive retention keeps everything.
func (l *Log) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return l.store.DeleteActivityBefore(ctx, l.clock.Now().Add(-retention))
}
