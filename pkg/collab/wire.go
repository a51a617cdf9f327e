package collab

import (
	"log"
	"time"

	"github.com/daviddao/potluck/pkg/activity"
	"github.com/daviddao/potluck/pkg/clock"
	"github.com/daviddao/potluck/pkg/gateway"
	"github.com/daviddao/potluck/pkg/ledger"
	"github.com/daviddao/potluck/pkg/notify"
	"github.com/daviddao/potluck/pkg/presence"
	"github.com/daviddao/potluck/pkg/store"
	"github.com/daviddao/potluck/pkg/syncer"
)

// Settings are the tunables of a store-backed Service.
type Settings struct {
	PresenceTimeout  time.Duration
	PresenceTracking bool
	ActivityLogging  bool
	Notifier         notify.Notifier
	Logger           *log.Logger
}

// Components are the parts built by NewFromStore, exposed so background
// jobs can share them.
type Components struct {
	Ledger   *ledger.Ledger
	Presence *presence.Tracker
	Activity *activity.Log
	Syncer   *syncer.Aggregator
	Gateway  *gateway.Gateway
}

// NewFromStore builds every component over one store and returns the
// Service together with its parts.
func NewFromStore(s store.StoreInterface, c clock.Clock, cfg Settings, opts ...Option) (*Service, Components) {
	c = clock.OrReal(c)
	comp := Components{
		Ledger: ledger.New(s, c),
		Presence: presence.New(s, c,
			presence.WithTimeout(cfg.PresenceTimeout),
			presence.WithEnabled(cfg.PresenceTracking)),
		Activity: activity.New(s, c, activity.WithEnabled(cfg.ActivityLogging)),
	}
	comp.Syncer = syncer.New(s, comp.Activity, c)
	comp.Gateway = gateway.New(gateway.Config{
		Documents: s,
		Users:     s,
		Ledger:    comp.Ledger,
		Notifier:  cfg.Notifier,
		Logger:    cfg.Logger,
	})
	return New(comp.Gateway, comp.Presence, comp.Activity, comp.Syncer, opts...), comp
}
