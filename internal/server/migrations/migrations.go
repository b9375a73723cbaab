// Package migrations embeds the goose migrations of the server database. The
// schema sticks to SQL understood by both PostgreSQL and SQLite.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
