package store

import (
	"strconv"
	"strings"
)

// dialect captures the few differences between the SQLite and Postgres backends.
type dialect struct {
	name         string
	driver       string
	dollarParams bool // Postgres wants $1..$n instead of ?
}

var (
	dialectSQLite   = dialect{name: "sqlite", driver: "sqlite"}
	dialectPostgres = dialect{name: "postgres", driver: "pgx", dollarParams: true}
)

// rebind rewrites ? placeholders for dialects that use numbered parameters.
// Queries in this package never contain a literal '?'.
func (d dialect) rebind(query string) string {
	if !d.dollarParams {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
