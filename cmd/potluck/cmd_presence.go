package main

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (a *app) cmdHeartbeat(ctx context.Context, args []string) int {
	fs := flags("heartbeat")
	jsonOut := fs.Bool("json", false, "JSON output")
	if err := a.setup(fs, args); err != nil {
		return fail("heartbeat", err)
	}
	if fs.NArg() < 1 {
		return usage("heartbeat <doc> [--json]")
	}
	me, err := a.resolveUser(ctx)
	if err != nil {
		return fail("heartbeat", err)
	}

	doc := fs.Arg(0)
	if err := a.svc.Heartbeat(ctx, doc, &me); err != nil {
		return fail("heartbeat", err)
	}

	now := a.clock.Now()
	if *jsonOut {
		printJSON(map[string]interface{}{
			"document_id": doc, "user_id": me.UserID, "last_seen": now,
			"tracking": a.cfg.PresenceTracking,
		})
	} else {
		fmt.Printf("heartbeat %s on %s at %s\n", me.DisplayName(), doc, now.Format(time.RFC3339))
	}
	return 0
}

func (a *app) cmdPresence(ctx context.Context, args []string) int {
	fs := flags("presence")
	all := fs.Bool("all", false, "include yourself")
	jsonOut := fs.Bool("json", false, "JSON output")
	if err := a.setup(fs, args); err != nil {
		return fail("presence", err)
	}
	if fs.NArg() < 1 {
		return usage("presence <doc> [--all] [--json]")
	}
	me, err := a.resolveUser(ctx)
	if err != nil {
		return fail("presence", err)
	}

	active, err := a.svc.ListActivePresence(ctx, fs.Arg(0), &me, !*all)
	if err != nil {
		return fail("presence", err)
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"active_users": active, "count": len(active)})
		return 0
	}
	if len(active) == 0 {
		fmt.Println("nobody else is here")
		return 0
	}
	now := a.clock.Now()
	for _, p := range active {
		fmt.Printf("%-24s  seen %s ago\n", p.UserName, now.Sub(p.LastSeen).Truncate(time.Second))
	}
	return 0
}

func (a *app) cmdAct(ctx context.Context, args []string) int {
	fs := flags("act")
	jsonOut := fs.Bool("json", false, "JSON output")
	if err := a.setup(fs, args); err != nil {
		return fail("act", err)
	}
	if fs.NArg() < 2 {
		return usage("act <doc> <action> [details...] [--json]")
	}
	me, err := a.resolveUser(ctx)
	if err != nil {
		return fail("act", err)
	}

	details := strings.Join(fs.Args()[2:], " ")
	ev, err := a.svc.AppendActivity(ctx, fs.Arg(0), &me, fs.Arg(1), details)
	if err != nil {
		return fail("act", err)
	}

	if *jsonOut {
		printJSON(ev)
	} else if ev.ID == "" {
		fmt.Println("activity logging is disabled")
	} else {
		fmt.Printf("logged %s by %s on %s\n", ev.Action, ev.UserName, ev.DocumentID)
	}
	return 0
}
