package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/daviddao/potluck/pkg/httpapi"
	"github.com/daviddao/potluck/pkg/model"
	"github.com/daviddao/potluck/pkg/poll"
)

func (a *app) cmdSync(ctx context.Context, args []string) int {
	fs := flags("sync")
	jsonOut := fs.Bool("json", false, "JSON output")
	if err := a.setup(fs, args); err != nil {
		return fail("sync", err)
	}
	if fs.NArg() < 1 {
		return usage("sync <doc> [--json]")
	}
	me, err := a.resolveUser(ctx)
	if err != nil {
		return fail("sync", err)
	}

	snap, err := a.svc.GetSyncSnapshot(ctx, fs.Arg(0), &me)
	if err != nil {
		return fail("sync", err)
	}

	if *jsonOut {
		printJSON(snap)
	} else {
		printSnapshot(snap)
	}
	return 0
}

func (a *app) cmdWatch(ctx context.Context, args []string) int {
	fs := flags("watch")
	url := fs.String("url", "", "server URL (default POTLUCK_URL)")
	token := fs.String("token", "", "API token (default: issue one for --as)")
	interval := fs.Duration("interval", 0, "poll interval (default POTLUCK_POLL_INTERVAL)")
	jsonOut := fs.Bool("json", false, "JSON output (one JSON object per line)")
	if err := a.setup(fs, args); err != nil {
		return fail("watch", err)
	}
	if fs.NArg() < 1 {
		return usage("watch <doc> [--url U] [--token T] [--interval D] [--json]")
	}
	if *url == "" {
		*url = a.cfg.URL
	}
	if *interval <= 0 {
		*interval = a.cfg.PollInterval
	}
	if *token == "" {
		tok, err := a.issueToken(ctx)
		if err != nil {
			return fail("watch", err)
		}
		*token = tok
	}

	doc := fs.Arg(0)
	client := httpapi.NewClient(*url, *token, nil)
	fetch := func(ctx context.Context) (model.Snapshot, error) {
		// Watching counts as viewing, so keep our presence fresh.
		if err := client.Heartbeat(ctx, doc); err != nil {
			return model.Snapshot{}, err
		}
		return client.Snapshot(ctx, doc)
	}

	var lastSync time.Time
	var lastErr string
	d := poll.New(fetch,
		poll.WithInterval[model.Snapshot](*interval),
		poll.OnChange(func(s poll.State[model.Snapshot]) {
			if s.Loading {
				return
			}
			if s.Error != "" && s.Error != lastErr {
				fmt.Fprintf(os.Stderr, "potluck: watch: %s (showing data from %s)\n",
					s.Error, formatSynced(s.LastSynced))
			}
			lastErr = s.Error
			if s.LastSynced.Equal(lastSync) {
				return
			}
			lastSync = s.LastSynced
			if *jsonOut {
				b, _ := json.Marshal(s.Data)
				fmt.Println(string(b))
			} else {
				printSnapshot(s.Data)
			}
		}),
	)

	// SIGUSR1 pauses or resumes polling; SIGUSR2 forces a sync.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sig)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-sig:
				if s == syscall.SIGUSR2 {
					d.ManualSync(ctx)
					continue
				}
				if d.TogglePolling() {
					fmt.Fprintln(os.Stderr, "polling resumed")
				} else {
					fmt.Fprintln(os.Stderr, "polling paused")
				}
			}
		}
	}()

	fmt.Fprintf(os.Stderr, "watching %s on %s (poll every %s, ctrl-c to stop)\n", doc, *url, *interval)
	if err := d.Run(ctx); err != nil {
		return fail("watch", err)
	}
	fmt.Fprintln(os.Stderr, "\nstopped")
	return 0
}

// issueToken signs a token for the acting user.
func (a *app) issueToken(ctx context.Context) (string, error) {
	me, err := a.resolveUser(ctx)
	if err != nil {
		return "", err
	}
	tm, err := a.tokens()
	if err != nil {
		return "", fmt.Errorf("%w (or pass --token)", err)
	}
	tok, _, err := tm.Issue(me)
	return tok, err
}

func formatSynced(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}

// printSnapshot writes a human-readable view of snap.
func printSnapshot(snap model.Snapshot) {
	d := snap.Document
	fmt.Printf("=== %s (%s) synced %s ===\n", d.Title, d.ID, snap.SyncTimestamp.Format(time.RFC3339))
	fmt.Printf("author: %s  collaborators: %d  public: %v\n", d.AuthorName, len(d.Collaborators), d.IsPublic)

	if len(snap.RecentActivity) > 0 {
		fmt.Println("recent:")
		for _, ev := range snap.RecentActivity {
			line := fmt.Sprintf("  %s  %s %s", ev.Timestamp.Format(time.RFC3339), ev.UserName, ev.Action)
			if ev.Details != "" {
				line += ": " + ev.Details
			}
			fmt.Println(line)
		}
	}

	if len(snap.CollaboratorActivity) > 0 {
		users := make([]string, 0, len(snap.CollaboratorActivity))
		for id := range snap.CollaboratorActivity {
			users = append(users, id)
		}
		sort.Strings(users)
		fmt.Println("last seen doing:")
		for _, id := range users {
			la := snap.CollaboratorActivity[id]
			fmt.Printf("  %-24s %s at %s\n", la.UserName, la.Action, la.Timestamp.Format(time.RFC3339))
		}
	}
}
