package storage

import (
	"strconv"
	"strings"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

type dialect struct {
	sqlite   bool
	idColumn string
	realType string
}

func dialectFor(driver string) dialect {
	if driver == DriverPostgres {
		return dialect{
			idColumn: "BIGSERIAL PRIMARY KEY",
			realType: "DOUBLE PRECISION",
		}
	}
	return dialect{
		sqlite:   true,
		idColumn: "INTEGER PRIMARY KEY AUTOINCREMENT",
		realType: "REAL",
	}
}

// rebind rewrites ? placeholders into $1, $2, ... for Postgres.
func (d dialect) rebind(query string) string {
	if d.sqlite || !strings.Contains(query, "?") {
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
