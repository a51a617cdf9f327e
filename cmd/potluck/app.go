package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/daviddao/potluck/pkg/apperr"
	"github.com/daviddao/potluck/pkg/clock"
	"github.com/daviddao/potluck/pkg/collab"
	"github.com/daviddao/potluck/pkg/config"
	"github.com/daviddao/potluck/pkg/identity"
	"github.com/daviddao/potluck/pkg/model"
	"github.com/daviddao/potluck/pkg/notify"
	"github.com/daviddao/potluck/pkg/store"
)

// app holds shared state for all CLI subcommands.
type app struct {
	cfg    config.Config
	clock  clock.Clock
	logger *log.Logger

	store *store.Store
	svc   *collab.Service
	comp  collab.Components
}

func newApp() *app {
	return &app{clock: clock.Real{}, logger: log.Default()}
}

// Close releases the database connection, if one was opened.
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
}

// flags returns a FlagSet for the named subcommand.
func flags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// setup parses args on fs, then opens the database and builds the service.
func (a *app) setup(fs *flag.FlagSet, args []string) error {
	cfg, err := config.ParseConfig(fs, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.Close()
	return a.open()
}

// open creates the database directory if needed and wires the service.
func (a *app) open() error {
	if dir := filepath.Dir(a.cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	s, err := store.New(a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("cannot open database %q: %w", a.cfg.DBPath, err)
	}
	a.store = s
	a.svc, a.comp = collab.NewFromStore(s, a.clock, collab.Settings{
		PresenceTimeout:  a.cfg.PresenceTimeout,
		PresenceTracking: a.cfg.PresenceTracking,
		ActivityLogging:  a.cfg.ActivityLogging,
		Notifier:         a.notifier(),
		Logger:           a.logger,
	})
	return nil
}

// notifier picks SMTP when configured, the log notifier otherwise, and the
// disabled notifier when invitation emails are switched off.
func (a *app) notifier() notify.Notifier {
	switch {
	case !a.cfg.EmailInvitations:
		return notify.Disabled{}
	case a.cfg.SMTP().Configured():
		return notify.NewSMTP(a.cfg.SMTP(), a.cfg.Branding())
	default:
		return notify.Log{Logger: a.logger, Branding: a.cfg.Branding()}
	}
}

// resolveUser returns the acting identity named by --as, falling back to
// POTLUCK_USER. Either a user id or an email is accepted.
func (a *app) resolveUser(ctx context.Context) (model.Identity, error) {
	ref := a.cfg.User
	if ref == "" {
		return model.Identity{}, errors.New("no user: pass --as or set POTLUCK_USER")
	}
	u, err := a.store.GetUser(ctx, ref)
	if store.IsNotFound(err) {
		u, err = a.store.FindUserByEmail(ctx, ref)
	}
	if store.IsNotFound(err) {
		return model.Identity{}, fmt.Errorf("unknown user %q: run 'potluck register' first", ref)
	}
	if err != nil {
		return model.Identity{}, err
	}
	return u.Identity(), nil
}

// tokens returns the token manager, which needs POTLUCK_JWT_SECRET.
func (a *app) tokens() (*identity.Manager, error) {
	if a.cfg.JWTSecret == "" {
		return nil, errors.New("POTLUCK_JWT_SECRET is not set")
	}
	return identity.NewManager(a.cfg.JWTSecret, a.cfg.JWTIssuer, a.cfg.TokenTTL, a.clock), nil
}

// fail reports err for cmd on stderr and returns the exit code.
func fail(cmd string, err error) int {
	fmt.Fprintf(os.Stderr, "potluck: %s: %v\n", cmd, err)
	if rejected(err) {
		return 2
	}
	return 1
}

// rejected reports whether err is a domain rule refusing the request, as
// opposed to a failure of the system itself.
func rejected(err error) bool {
	switch apperr.GetCode(err) {
	case apperr.CodeUnknown, apperr.CodeInternal,
		apperr.CodeNotificationFailed, apperr.CodeMembershipWriteFailed:
		return false
	}
	return true
}

// usage prints a usage line and returns the error exit code.
func usage(line string) int {
	fmt.Fprintln(os.Stderr, "usage: potluck "+line)
	return 1
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
