// Package presence tracks which users are currently looking at a document.
//
// A heartbeat refreshes the single record for (document, user). Records
// older than the timeout are filtered out on read; Reaper deletes them
// separately to bound storage.
package presence

import (
	"context"
	"log"
	"time"

	"github.com/daviddao/potluck/pkg/apperr"
	"github.com/daviddao/potluck/pkg/clock"
	"github.com/daviddao/potluck/pkg/model"
	"github.com/daviddao/potluck/pkg/store"
)

// Tracker records heartbeats and lists active users.
type Tracker struct {
	store   store.PresenceStore
	clock   clock.Clock
	timeout time.Duration
	enabled bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTimeout sets how long a heartbeat keeps a user active.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithEnabled turns tracking on or off. When off, heartbeats are dropped
// and nobody is ever active.
func WithEnabled(on bool) Option {
	return func(t *Tracker) { t.enabled = on }
}

// New returns an enabled Tracker using the default timeout.
func New(s store.PresenceStore, c clock.Clock, opts ...Option) *Tracker {
	t := &Tracker{store: s, clock: clock.OrReal(c), timeout: model.DefaultPresenceTimeout, enabled: true}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Timeout returns the liveness window.
func (t *Tracker) Timeout() time.Duration { return t.timeout }

// Heartbeat marks userID as active on documentID now.
func (t *Tracker) Heartbeat(ctx context.Context, documentID, userID, userName string) error {
	if !t.enabled {
		return nil
	}
	if documentID == "" || userID == "" {
		return apperr.New(apperr.CodeInvalidArgument, "document and user are required")
	}
	p := model.Presence{DocumentID: documentID, UserID: userID, UserName: userName, LastSeen: t.clock.Now()}
	if err := t.store.UpsertPresence(ctx, p); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "record heartbeat", err)
	}
	return nil
}

// ListActive returns users whose last heartbeat on documentID is within the
// timeout, ordered by user ID. A non-empty excludeUserID is left out.
func (t *Tracker) ListActive(ctx context.Context, documentID, excludeUserID string) ([]model.Presence, error) {
	if !t.enabled {
		return []model.Presence{}, nil
	}
	since := t.clock.Now().Add(-t.timeout)
	ps, err := t.store.ListPresence(ctx, documentID, since, excludeUserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list presence", err)
	}
	return ps, nil
}

// Reaper deletes presence records that can no longer be active.
type Reaper struct {
	store   store.PresenceStore
	clock   clock.Clock
	timeout time.Duration
	logger  *log.Logger
}

// NewReaper returns a Reaper removing records older than timeout.
func NewReaper(s store.PresenceStore, c clock.Clock, timeout time.Duration, logger *log.Logger) *Reaper {
	if timeout <= 0 {
		timeout = model.DefaultPresenceTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Reaper{store: s, clock: clock.OrReal(c), timeout: timeout, logger: logger}
}

// Sweep deletes stale records and returns how many were removed. It only
// removes records ListActive already ignores.
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	n, err := r.store.DeletePresenceBefore(ctx, r.clock.Now().Add(-r.timeout))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Printf("lvl=info component=presence msg=\"swept stale presence\" removed=%d", n)
	}
	return n, nil
}
