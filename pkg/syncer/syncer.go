// Package syncer assembles the read-only snapshot a polling client receives.
package syncer

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/daviddao/potluck/pkg/activity"
	"github.com/daviddao/potluck/pkg/apperr"
	"github.com/daviddao/potluck/pkg/clock"
	"github.com/daviddao/potluck/pkg/model"
	"github.com/daviddao/potluck/pkg/store"
)

// Aggregator composes document state with recent activity. It takes no
// locks; the document and activity reads may be slightly skewed.
type Aggregator struct {
	docs  store.DocumentReader
	log   *activity.Log
	clock clock.Clock
}

// New returns an Aggregator.
func New(docs store.DocumentReader, log *activity.Log, c clock.Clock) *Aggregator {
	return &Aggregator{docs: docs, log: log, clock: clock.OrReal(c)}
}

// Snapshot returns the current view of documentID for requester.
func (a *Aggregator) Snapshot(ctx context.Context, documentID string, requester model.Identity) (model.Snapshot, error) {
	doc, err := a.docs.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Snapshot{}, apperr.Newf(apperr.CodeNotFound, "document %s not found", documentID)
		}
		return model.Snapshot{}, apperr.Wrap(apperr.CodeInternal, "load document", err)
	}
	if !doc.CanView(requester) {
		return model.Snapshot{}, apperr.New(apperr.CodeForbidden, "you do not have access to this document")
	}

	var (
		recent []model.Activity
		latest map[string]model.LastActivity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, err = a.log.Recent(gctx, documentID, model.RecentActivityLimit)
		return err
	})
	g.Go(func() error {
		var err error
		latest, err = a.log.LatestPerUser(gctx, documentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Snapshot{}, err
	}

	return model.Snapshot{
		Document:             *doc,
		RecentActivity:       recent,
		CollaboratorActivity: latest,
		SyncTimestamp:        a.clock.Now(),
	}, nil
}
