// Package cli provides the interactive fieldsync command-line client.
//
// It wires configuration, the local database, the sync engine and an
// interactive REPL that keeps working offline. Typical flow: prompt for an
// access token (or resume the stored session), start a background
// connectivity watcher, and execute user commands.
//
// Key features:
//   - Login / Logout with offline session restore
//   - List / Show / Add / Edit / Archive / Delete rows of any synced table
//   - Sync with progress output and a watchdog prompt
//   - Conflict listing and keep-local / discard-local resolution
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
