package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Sync(ctx context.Context) error
	GoOffline(ctx context.Context) error
	GoOnline(ctx context.Context) error

	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Archive(ctx context.Context, args []string) error
	Unarchive(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Conflicts(ctx context.Context, args []string) error
	Resolve(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
}

const (
	helpLoggedOut = "Available commands: login, exit"
	helpLoggedIn  = "Available commands: (l)ist <table> [all], show <table> <id>, add <table>, edit <table> <id>, " +
		"archive|unarchive <table> <id>, delete <table> <id>, conflicts, resolve <table> <id> keep|discard, " +
		"sync, status, offline, online, logout, exit"
)

// runREPL starts a simple read–eval–print loop for the fieldsync CLI.
//
// It reads a line from reader, parses the first token as the
// command, and dispatches to methods on 'a' with the remaining tokens as
// arguments. Data commands require a session; before login only login, help
// and exit are accepted. The loop exits on scanner EOF or when the user
// types "exit" or "quit".
//
// Errors returned by command handlers are ignored here; handlers report
// their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("fs %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}
			continue
		case "login":
			_ = a.Login(ctx)
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		if !a.isLoggedIn() {
			printlnFn("Please log in first")
			continue
		}

		switch cmd {
		case "l", "list":
			_ = a.List(ctx, args)
		case "show":
			_ = a.Show(ctx, args)
		case "add":
			_ = a.Add(ctx, args)
		case "edit":
			_ = a.Edit(ctx, args)
		case "archive":
			_ = a.Archive(ctx, args)
		case "unarchive":
			_ = a.Unarchive(ctx, args)
		case "delete":
			_ = a.Delete(ctx, args)
		case "conflicts":
			_ = a.Conflicts(ctx, args)
		case "resolve":
			_ = a.Resolve(ctx, args)
		case "status":
			_ = a.Status(ctx, args)
		case "sync":
			_ = a.Sync(ctx)
		case "offline":
			_ = a.GoOffline(ctx)
		case "online":
			_ = a.GoOnline(ctx)
		case "logout":
			_ = a.Logout(ctx)
		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
