// Package client contains the transport and local-database bootstrap of the
// field client.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) to talk
//     to the sync server: Ping, Session, Push/PushDeleted, Pull/PullDeleted
//     and icon asset URLs.
//  2. A concrete JSON/HTTP implementation (see HTTPClient) built on resty. It
//     injects the bearer token, retries network failures and 5xx responses,
//     and maps status codes to sentinel errors.
//  3. Local persistence bootstrap utilities (InitDatabase, RunMigrations,
//     NewRepositories), wiring an SQLite database and applying embedded
//     goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrMalformedResponse. Non-2xx
// responses surface as *StatusError, which unwraps to the matching sentinel.
package client
