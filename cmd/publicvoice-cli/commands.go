package main

import (
	"errors"
	"flag"
	"os"
	"strings"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
	"github.com/publicvoice/portal/internal/service"
)

var errNotLoggedIn = errors.New("not logged in")

// pageRequirements mirrors the portal's guarded pages; any other path is public.
var pageRequirements = map[string]struct { //nolint:gochecknoglobals // read-only route table
	requirement domainauth.RouteRequirement
	citizenArea bool
}{
	domainauth.CitizenDashboardPath: {requirement: domainauth.RequiresAuth, citizenArea: true},
	"/user/profile":                 {requirement: domainauth.RequiresAuth, citizenArea: true},
	domainauth.AdminDashboardPath:   {requirement: domainauth.RequiresAdmin},
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// promptIfEmpty asks for value when the flag was not given.
func promptIfEmpty(ctx *commandContext, value, label string) (string, error) {
	if v := strings.TrimSpace(value); v != "" {
		return v, nil
	}
	return ctx.Prompt.Line(label)
}

func runLogin(ctx *commandContext, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "Account email (prompted when empty)")
	preferAdmin := fs.Bool("admin", false, "Land on the admin dashboard")
	if err := fs.Parse(args); err != nil {
		return err
	}

	addr, err := promptIfEmpty(ctx, *email, "Email")
	if err != nil {
		return err
	}
	password, err := ctx.Prompt.Secret("Password")
	if err != nil {
		return err
	}

	res := ctx.Session.Login(ctx.Ctx, addr, password, service.LoginOptions{PreferAdmin: *preferAdmin})
	if err := resultError(res); err != nil {
		return err
	}
	snap := ctx.Session.Snapshot()
	if err := printIdentity(ctx, snap); err != nil {
		return err
	}
	return writef(ctx.Out, "Landing page: %s\n", domainauth.PostLoginLocation(snap, ""))
}

func runRegister(ctx *commandContext, args []string) error {
	fs := newFlagSet("register")
	name := fs.String("name", "", "Full name (prompted when empty)")
	email := fs.String("email", "", "Account email (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fullName, err := promptIfEmpty(ctx, *name, "Full name")
	if err != nil {
		return err
	}
	addr, err := promptIfEmpty(ctx, *email, "Email")
	if err != nil {
		return err
	}
	password, err := ctx.Prompt.Secret("Password")
	if err != nil {
		return err
	}

	if err := resultError(ctx.Session.Register(ctx.Ctx, fullName, addr, password)); err != nil {
		return err
	}
	return printIdentity(ctx, ctx.Session.Snapshot())
}

func runLogout(ctx *commandContext, _ []string) error {
	if err := resultError(ctx.Session.Logout(ctx.Ctx)); err != nil {
		return err
	}
	return writef(ctx.Out, "Logged out.\n")
}

func runWhoami(ctx *commandContext, _ []string) error {
	snap := ctx.Session.Snapshot()
	if !snap.IsAuthenticated() {
		return errNotLoggedIn
	}
	return printIdentity(ctx, snap)
}

// runOpen evaluates the route guard for a portal path without rendering anything.
func runOpen(ctx *commandContext, args []string) error {
	fs := newFlagSet("open")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: open <path>")
	}
	path := fs.Arg(0)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	snap := ctx.Session.Snapshot()
	page := pageRequirements[path]
	d := domainauth.Decide(snap, page.requirement, path)
	if d.Outcome == domainauth.OutcomeRender && page.citizenArea {
		d = domainauth.DecideCitizenArea(snap)
	}

	switch d.Outcome {
	case domainauth.OutcomeRender:
		return writef(ctx.Out, "%s: render\n", path)
	case domainauth.OutcomeLoading:
		return writef(ctx.Out, "%s: loading (identity not resolved yet)\n", path)
	case domainauth.OutcomeRedirectLogin, domainauth.OutcomeRedirectCitizen, domainauth.OutcomeRedirectAdmin:
		return writef(ctx.Out, "%s: %s -> %s\n", path, d.Outcome, d.Location)
	default:
		return writef(ctx.Out, "%s: %s\n", path, d.Outcome)
	}
}

func runForgotPassword(ctx *commandContext, args []string) error {
	fs := newFlagSet("forgot-password")
	email := fs.String("email", "", "Account email (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	addr, err := promptIfEmpty(ctx, *email, "Email")
	if err != nil {
		return err
	}
	if err := resultError(ctx.Session.RequestPasswordReset(ctx.Ctx, addr)); err != nil {
		return err
	}
	return writef(ctx.Out, "If an account exists for %s, a reset link is on its way.\n", service.NormalizeEmail(addr))
}

func runResetPassword(ctx *commandContext, args []string) error {
	fs := newFlagSet("reset-password")
	token := fs.String("token", "", "Reset token from the email (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resetToken, err := promptIfEmpty(ctx, *token, "Reset token")
	if err != nil {
		return err
	}
	password, err := ctx.Prompt.Secret("New password")
	if err != nil {
		return err
	}
	if err := resultError(ctx.Session.ResetPassword(ctx.Ctx, resetToken, password)); err != nil {
		return err
	}
	return writef(ctx.Out, "Password updated. Log in with the new password.\n")
}

func runProfile(ctx *commandContext, args []string) error {
	fs := newFlagSet("profile")
	name := fs.String("name", "", "New full name (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !ctx.Session.Snapshot().IsAuthenticated() {
		return errNotLoggedIn
	}

	fullName, err := promptIfEmpty(ctx, *name, "Full name")
	if err != nil {
		return err
	}
	if err := resultError(ctx.Session.UpdateProfile(ctx.Ctx, fullName)); err != nil {
		return err
	}
	return printIdentity(ctx, ctx.Session.Snapshot())
}

func printIdentity(ctx *commandContext, snap domainauth.Snapshot) error {
	u := snap.User
	if u == nil {
		return writef(ctx.Out, "Logged in (identity still loading).\n")
	}
	return writef(ctx.Out, "Logged in as %s <%s> (%s)\n", u.FullName, u.Email, u.Role)
}
