// Command potluck coordinates co-editing of shared recipes: invitations,
// presence, activity, and the sync snapshot polling clients consume.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
		return
	case "--version", "-v", "version":
		fmt.Println("potluck", version)
		return
	}

	// A missing .env is fine; the environment alone is enough.
	_ = godotenv.Load()
	log.SetPrefix("[POTLUCK] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := newApp()
	code := a.run(ctx, os.Args[1], os.Args[2:])
	a.Close()
	stop()
	os.Exit(code)
}

// run dispatches one subcommand and returns its exit code.
func (a *app) run(ctx context.Context, name string, args []string) int {
	switch name {
	// Server
	case "serve":
		return a.cmdServe(ctx, args)

	// Setup
	case "register":
		return a.cmdRegister(ctx, args)
	case "new":
		return a.cmdNew(ctx, args)
	case "token":
		return a.cmdToken(ctx, args)

	// Invitations
	case "invite":
		return a.cmdInvite(ctx, args)
	case "accept":
		return a.cmdRespond(ctx, "accept", args)
	case "decline":
		return a.cmdRespond(ctx, "decline", args)
	case "invitations":
		return a.cmdInvitations(ctx, args)

	// Presence and activity
	case "heartbeat", "hb":
		return a.cmdHeartbeat(ctx, args)
	case "presence":
		return a.cmdPresence(ctx, args)
	case "act":
		return a.cmdAct(ctx, args)

	// Sync
	case "sync":
		return a.cmdSync(ctx, args)
	case "watch":
		return a.cmdWatch(ctx, args)

	default:
		fmt.Fprintf(os.Stderr, "potluck: unknown command %q\n", name)
		fmt.Fprintln(os.Stderr, "Run 'potluck --help' for usage.")
		return 1
	}
}

func printUsage() {
	fmt.Print(`potluck: collaboration coordination for shared recipes

Invitations, presence, and an activity log over a shared SQLite database,
served over HTTP for polling clients.

Usage:
  potluck <command> [flags]

Server:
  serve                          Run the HTTP API, janitor and telemetry

Setup:
  register <email> [name]        Add a user to the directory
  new <title> [--public]         Create a recipe owned by the acting user
  token                          Issue an API token for the acting user

Invitations:
  invite <doc> <email> [--message M]   Invite a registered user (author only)
  accept <invitation>                  Accept an invitation sent to you
  decline <invitation>                 Decline an invitation sent to you
  invitations [--doc ID]               Your pending invitations, or a
                                       recipe's full history (author only)

Presence and activity:
  heartbeat <doc>                Report that you are viewing a recipe
  presence <doc> [--all]         Who is active (excludes you unless --all)
  act <doc> <action> [details]   Append to the activity log

Sync:
  sync <doc>                     Print the sync snapshot once
  watch <doc> [--interval D]     Poll the server's snapshot and heartbeat

Aliases:
  hb = heartbeat

Environment (also read from .env):
  POTLUCK_DB            SQLite database path (default: .potluck/potluck.db)
  POTLUCK_USER          Default acting user id or email
  POTLUCK_URL           Server URL for watch (default: http://localhost:8080)
  POTLUCK_JWT_SECRET    Token signing secret (required by serve and token)
  POTLUCK_SMTP_HOST     Mail server; invitation emails are logged when unset

All commands support --json for machine-readable output.
All commands support --as <user> to override POTLUCK_USER
and --db <path> to override POTLUCK_DB.

Exit codes:
  0  success
  1  error
  2  rejected (forbidden, expired, conflict, already responded, ...)
`)
}
