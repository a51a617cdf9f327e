package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daviddao/potluck/pkg/httpapi"
	"github.com/daviddao/potluck/pkg/janitor"
	"github.com/daviddao/potluck/pkg/presence"
	"github.com/daviddao/potluck/pkg/telemetry"
)

const shutdownTimeout = 5 * time.Second

func (a *app) cmdServe(ctx context.Context, args []string) int {
	fs := flags("serve")
	addr := fs.String("addr", "", "listen address (default POTLUCK_HTTP_ADDR)")
	if err := a.setup(fs, args); err != nil {
		return fail("serve", err)
	}
	if *addr != "" {
		a.cfg.HTTPAddr = *addr
	}
	if err := a.cfg.ValidateServe(); err != nil {
		return fail("serve", err)
	}
	if err := a.serve(ctx); err != nil {
		return fail("serve", err)
	}
	return 0
}

// serve runs the HTTP server and the janitor until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	shutdownOTel, err := telemetry.Setup(ctx, "potluck", a.cfg.OTelEndpoint, a.cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			a.logger.Printf("lvl=warn component=serve msg=\"otel shutdown\" err=%q", err)
		}
	}()

	tm, err := a.tokens()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(a.svc, tm, a.store, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	jan := janitor.New(
		presence.NewReaper(a.store, a.clock, a.cfg.PresenceTimeout, a.logger),
		a.comp.Activity,
		a.cfg.ActivityRetention,
		a.cfg.SweepInterval,
		a.logger,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Printf("lvl=info component=serve msg=listening addr=%s db=%s", a.cfg.HTTPAddr, a.cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		jan.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	err = g.Wait()
	a.logger.Printf("lvl=info component=serve msg=stopped")
	return err
}
