package dbx

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Dialect captures the few SQL differences between the supported engines.
type Dialect struct {
	// Goose is the dialect name understood by goose.SetDialect.
	Goose string
	// numbered placeholders ($1, $2, ...) instead of ?.
	numbered bool
}

var (
	SQLite   = Dialect{Goose: "sqlite3"}
	Postgres = Dialect{Goose: "pgx", numbered: true}
)

// Placeholder returns the n-th (1-based) bind placeholder.
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Builder accumulates bind arguments while a query is being assembled.
type Builder struct {
	d    Dialect
	args []any
}

// NewBuilder returns an empty builder for d.
func (d Dialect) NewBuilder() *Builder { return &Builder{d: d} }

// Arg records v and returns its placeholder.
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

// List records every value and returns a comma separated placeholder list.
func (b *Builder) List(vs ...any) string {
	ph := make([]string, len(vs))
	for i, v := range vs {
		ph[i] = b.Arg(v)
	}
	return strings.Join(ph, ", ")
}

// Args returns the recorded arguments in bind order.
func (b *Builder) Args() []any { return b.args }

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure on
// either engine.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports whether err is a foreign key failure on
// either engine.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
