// Package janitor runs periodic storage hygiene: stale presence records
// and activity past its retention window.
package janitor

import (
	"context"
	"log"
	"time"
)

// PresenceSweeper removes presence records that can no longer be active.
type PresenceSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// ActivityPruner removes activity older than a retention window.
type ActivityPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Janitor periodically sweeps presence and prunes activity.
type Janitor struct {
	presence  PresenceSweeper
	activity  ActivityPruner
	retention time.Duration
	interval  time.Duration
	logger    *log.Logger
}

// New returns a Janitor. A zero retention keeps activity forever.
func New(p PresenceSweeper, a ActivityPruner, retention, interval time.Duration, logger *log.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Janitor{presence: p, activity: a, retention: retention, interval: interval, logger: logger}
}

// Result counts what one pass removed.
type Result struct {
	Presence int64
	Activity int64
}

// Sweep runs one pass. Both jobs run even if the first fails; the first
// error is returned.
func (j *Janitor) Sweep(ctx context.Context) (Result, error) {
	var res Result
	var firstErr error
	if j.presence != nil {
		n, err := j.presence.Sweep(ctx)
		if err != nil {
			firstErr = err
		}
		res.Presence = n
	}
	if j.activity != nil && j.retention > 0 {
		n, err := j.activity.Prune(ctx, j.retention)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		res.Activity = n
	}
	return res, firstErr
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := j.Sweep(ctx)
			if err != nil {
				j.logger.Printf("lvl=error component=janitor err=%q", err)
				continue
			}
			if res.Presence > 0 || res.Activity > 0 {
				j.logger.Printf("lvl=info component=janitor presence_removed=%d activity_removed=%d", res.Presence, res.Activity)
			}
		}
	}
}
