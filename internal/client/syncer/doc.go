// Package syncer runs the bidirectional sync cycle of the field client.
//
// A cycle is an ordered list of steps: push every table in parent-first
// order, push local tombstones, pull every table, pull remote tombstones
// and, optionally, fetch icon binaries. Steps run strictly in sequence.
//
// Push sends the dirty rows of a table and reads back a result per row:
// accepted rows are marked synced (only if they were not edited meanwhile),
// refused rows move to CONFLICT. Pull fetches rows changed since the table's
// persisted cursor, writes them unless the local copy is dirty, and advances
// the cursor. Tombstones are applied deepest table first.
//
// A transport failure stops the cycle and is reported as an *Error carrying
// a Kind and a Remediation. Refused rows never stop a cycle.
package syncer
