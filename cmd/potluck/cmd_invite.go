package main

import (
	"context"
	"fmt"
	"time"

	"github.com/daviddao/potluck/pkg/model"
)

func (a *app) cmdInvite(ctx context.Context, args []string) int {
	fs := flags("invite")
	message := fs.String("message", "", "personal note for the invitee")
	jsonOut := fs.Bool("json", false, "JSON output")
	if err := a.setup(fs, args); err != nil {
		return fail("invite", err)
	}
	if fs.NArg() < 2 {
		return usage("invite <doc> <email> [--message M] [--json]")
	}
	me, err := a.resolveUser(ctx)
	if err != nil {
		return fail("invite", err)
	}

	inv, err := a.svc.CreateInvitation(ctx, fs.Arg(0), &me, fs.Arg(1), *message)
	if err != nil {
		return fail("invite", err)
	}

	if *jsonOut {
		printJSON(inv)
	} else {
		fmt.Printf("invited %s to %s (invitation=%s, expires %s)\n",
			inv.InvitedEmail, inv.DocumentID, inv.ID, inv.ExpiresAt.Format(time.RFC3339))
	}
	return 0
}

func (a *app) cmdRespond(ctx context.Context, action string, args []string) int {
	fs := flags(action)
	jsonOut := fs.Bool("json", false, "JSON output")
	if err := a.setup(fs, args); err != nil {
		return fail(action, err)
	}
	if fs.NArg() < 1 {
		return usage(action + " <invitation> [--json]")
	}
	me, err := a.resolveUser(ctx)
	if err != nil {
		return fail(action, err)
	}

	inv, err := a.svc.RespondInvitation(ctx, fs.Arg(0), &me, model.ResponseAction(action))
	if err != nil {
		// An accepted invitation whose membership write failed is still
		// reported so the caller can see its final state.
		if inv.ID != "" && *jsonOut {
			printJSON(inv)
		}
		return fail(action, err)
	}

	if *jsonOut {
		printJSON(inv)
	} else {
		fmt.Printf("%s invitation %s for %s\n", inv.Status, inv.ID, inv.DocumentID)
	}
	return 0
}

func (a *app) cmdInvitations(ctx context.Context, args []string) int {
	fs := flags("invitations")
	doc := fs.String("doc", "", "list every invitation of this recipe (author only)")
	jsonOut := fs.Bool("json", false, "JSON output")
	if err := a.setup(fs, args); err != nil {
		return fail("invitations", err)
	}
	me, err := a.resolveUser(ctx)
	if err != nil {
		return fail("invitations", err)
	}

	var invs []model.Invitation
	if *doc != "" {
		invs, err = a.svc.ListDocumentInvitations(ctx, *doc, &me)
	} else {
		invs, err = a.svc.ListMyPendingInvitations(ctx, &me)
	}
	if err != nil {
		return fail("invitations", err)
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"invitations": invs, "count": len(invs)})
		return 0
	}
	if len(invs) == 0 {
		fmt.Println("no invitations")
		return 0
	}
	for _, inv := range invs {
		printInvitation(inv)
	}
	return 0
}

// printInvitation writes one invitation as a single line.
func printInvitation(inv model.Invitation) {
	line := fmt.Sprintf("%s  %-8s  %s -> %s  doc=%s  expires=%s",
		inv.ID, inv.Status, inv.InviterName, inv.InvitedEmail, inv.DocumentID,
		inv.ExpiresAt.Format(time.RFC3339))
	if inv.Message != "" {
		line += fmt.Sprintf("  %q", inv.Message)
	}
	fmt.Println(line)
}
