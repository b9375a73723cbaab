package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
)

// getSimpleText and getToken are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getToken = GetToken

// Login prompts for an access token and validates it against the server.
//
// If the server is unreachable the last stored session is restored and the
// app starts in offline mode; if nothing was stored the app is disabled
// until a successful login.
func (a *App) Login(ctx context.Context) error {
	token, err := getToken(os.Stdout)
	if err != nil {
		return err
	}
	if token == "" {
		return a.restore(ctx)
	}

	s, err := a.authService.Login(ctx, token)
	switch {
	case err == nil:
		a.unauthorized.Store(false)
		a.setSession(s)
		printlnFn(fmt.Sprintf("Logged in as %s (%s)", displayName(s.UserName, s.UserID), s.Role))
		a.logger.Info(ctx, "login", "user", s.UserID, "role", string(s.Role))
		a.setMode(ModeOnline)
		return nil
	case errors.Is(err, client.ErrUnavailable):
		printlnFn("Server unavailable, trying offline login...")
		return a.restore(ctx)
	default:
		printlnFn("Login unsuccessful:", err.Error())
		return err
	}
}

// restore resumes the stored session without contacting the server.
func (a *App) restore(ctx context.Context) error {
	s, err := a.authService.Restore(ctx)
	if err != nil {
		printlnFn("Offline login unsuccessful:", err.Error())
		a.setMode(ModeDisabled)
		return err
	}
	a.setSession(s)
	printlnFn(fmt.Sprintf("Offline login as %s", displayName(s.UserName, s.UserID)))
	a.setMode(ModeOffline)
	return nil
}

// Logout forgets the stored token. Local data stays on the device so that
// unsynced edits survive.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.setSession(nil)
	a.setMode(ModeDisabled)
	return nil
}

// GoOffline stops background connectivity checks until GoOnline.
func (a *App) GoOffline(ctx context.Context) error {
	a.forcedOffline.Store(true)
	a.setMode(ModeOffline)
	return nil
}

// GoOnline re-enables connectivity checks and probes the server right away.
func (a *App) GoOnline(ctx context.Context) error {
	a.forcedOffline.Store(false)
	a.checkOnline(ctx)
	if a.getMode() != ModeOnline {
		printlnFn("Server is not reachable")
	}
	return nil
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
