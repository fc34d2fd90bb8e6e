package queue

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// dialect captures the SQL differences between the sqlite and postgres stores.
// Queries are written with ? placeholders and rebound per dialect.
type dialect struct {
	name        string
	driverName  string
	schema      string
	tableExists string
	columns     string
	claimLock   string
}

var sqliteDialect = dialect{
	name:        "sqlite",
	driverName:  "sqlite",
	schema:      schemaSQL,
	tableExists: "SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?",
	columns:     "SELECT name FROM pragma_table_info('jobs')",
	claimLock:   "",
}

var postgresDialect = dialect{
	name:        "postgres",
	driverName:  "pgx",
	schema:      schemaPostgresSQL,
	tableExists: "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?",
	columns:     "SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = 'jobs'",
	claimLock:   " FOR UPDATE SKIP LOCKED",
}

func (d dialect) rebind(query string) string {
	if d.name != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
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

const (
	sqliteConstraintUnique = 2067
	pgUniqueViolation      = "23505"
)

func (d dialect) isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteConstraintUnique {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
