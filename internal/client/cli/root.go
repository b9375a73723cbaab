package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	s := ""
	if sess := a.currentSession(); sess != nil {
		s = displayName(sess.UserName, sess.UserID) + " "
	}
	if m := a.getMode(); m != "" {
		s = s + string(m)
	}
	if a.unauthorized.Load() {
		s += ", token rejected"
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Root logs in, starts the connectivity watcher and runs the REPL until
// the user exits.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to fieldsync CLI (type 'help' for commands)")

	_ = a.Login(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader)
}
