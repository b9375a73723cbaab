package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/syncer"
)

// Sync runs a blocking cycle, printing progress and asking what to do when
// the watchdog fires.
func (a *App) Sync(ctx context.Context) error {
	if a.getMode() != ModeOnline {
		printlnFn("Sync is not available in", a.getMode(), "mode")
		return nil
	}

	hooks := syncer.Hooks{
		OnState: func(s syncer.State) {
			if s.Kind == syncer.StateRunning {
				fmt.Fprintf(a.out, "\r[%3.0f%%] %-40s", s.Progress*100, s.Step)
			}
		},
		OnTimeout: func(elapsed time.Duration) syncer.TimeoutDecision {
			fmt.Fprintln(a.out)
			if Confirm(a.reader, fmt.Sprintf("Sync is taking %s. Keep waiting?", elapsed.Round(time.Second)), a.out) {
				return syncer.KeepWaiting
			}
			return syncer.GoOffline
		},
	}

	report, err := a.sync.Run(ctx, syncer.ModeBlocking, hooks)
	fmt.Fprintln(a.out)
	if err != nil {
		return a.reportSyncError(err)
	}
	a.lastReport.Store(report)

	if report.Abandoned {
		printlnFn("Sync abandoned, continuing offline")
		a.setMode(ModeOffline)
		return nil
	}

	t := report.Totals()
	printlnFn(fmt.Sprintf("Sync completed in %s: pushed %d, pulled %d, conflicts %d, skipped %d, failed %d",
		report.Duration.Round(time.Millisecond), t.Sent, t.Received, t.Conflicts, t.Skipped, t.Failed))
	if t.Conflicts > 0 {
		printlnFn("Use 'conflicts' to review rows the server refused")
	}
	return nil
}

func (a *App) reportSyncError(err error) error {
	if errors.Is(err, syncer.ErrInProgress) {
		printlnFn("A sync is already running")
		return err
	}
	var se *syncer.Error
	if !errors.As(err, &se) {
		printlnFn("Sync failed:", err.Error())
		return err
	}

	printlnFn(fmt.Sprintf("Sync failed at %s: %v", se.Step, se.Err))
	switch se.Kind.Remediation() {
	case syncer.RemediationGoOffline:
		printlnFn("Server unreachable, switching to offline mode")
		a.setMode(ModeOffline)
	case syncer.RemediationReLogin:
		printlnFn("Your session is no longer valid, please log in again")
		a.setMode(ModeDisabled)
	default:
		printlnFn("Please retry later")
	}
	return err
}

// backgroundSync is fired when connectivity returns. Failures only reach
// the log.
func (a *App) backgroundSync(ctx context.Context) {
	report, err := a.sync.Run(ctx, syncer.ModeBackground, syncer.Hooks{})
	if err != nil {
		if errors.Is(err, syncer.ErrInProgress) {
			return
		}
		var se *syncer.Error
		if errors.As(err, &se) && se.Kind == syncer.KindNetwork {
			a.setMode(ModeOffline)
		}
		return
	}
	a.lastReport.Store(report)
	if report.Abandoned {
		a.setMode(ModeOffline)
	}
}
