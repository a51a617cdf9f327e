package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daviddao/potluck/pkg/model"
)

func (a *app) cmdRegister(ctx context.Context, args []string) int {
	fs := flags("register")
	jsonOut := fs.Bool("json", false, "JSON output")
	if err := a.setup(fs, args); err != nil {
		return fail("register", err)
	}
	if fs.NArg() < 1 {
		return usage("register <email> [name] [--json]")
	}

	u := &model.User{
		ID:        uuid.NewString(),
		Email:     fs.Arg(0),
		Name:      strings.Join(fs.Args()[1:], " "),
		CreatedAt: a.clock.Now(),
	}
	if err := a.store.CreateUser(ctx, u); err != nil {
		return fail("register", err)
	}

	if *jsonOut {
		printJSON(u)
	} else {
		fmt.Printf("registered %s (id=%s)\n", u.Email, u.ID)
		fmt.Fprintf(os.Stderr, "hint: export POTLUCK_USER=%s\n", u.Email)
	}
	return 0
}

func (a *app) cmdNew(ctx context.Context, args []string) int {
	fs := flags("new")
	public := fs.Bool("public", false, "readable by anyone")
	desc := fs.String("description", "", "short description")
	jsonOut := fs.Bool("json", false, "JSON output")
	if err := a.setup(fs, args); err != nil {
		return fail("new", err)
	}
	if fs.NArg() < 1 {
		return usage("new <title> [--public] [--description D] [--json]")
	}
	me, err := a.resolveUser(ctx)
	if err != nil {
		return fail("new", err)
	}

	now := a.clock.Now()
	d := &model.Document{
		ID:          uuid.NewString(),
		Title:       strings.Join(fs.Args(), " "),
		Description: *desc,
		AuthorID:    me.UserID,
		AuthorName:  me.DisplayName(),
		IsPublic:    *public,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.CreateDocument(ctx, d); err != nil {
		return fail("new", err)
	}

	if *jsonOut {
		printJSON(d)
	} else {
		fmt.Printf("created %q (id=%s, public=%v)\n", d.Title, d.ID, d.IsPublic)
	}
	return 0
}

func (a *app) cmdToken(ctx context.Context, args []string) int {
	fs := flags("token")
	jsonOut := fs.Bool("json", false, "JSON output")
	if err := a.setup(fs, args); err != nil {
		return fail("token", err)
	}
	me, err := a.resolveUser(ctx)
	if err != nil {
		return fail("token", err)
	}
	tm, err := a.tokens()
	if err != nil {
		return fail("token", err)
	}
	tok, exp, err := tm.Issue(me)
	if err != nil {
		return fail("token", err)
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"token": tok, "expires_at": exp, "user": me})
	} else {
		fmt.Println(tok)
		fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
	}
	return 0
}
