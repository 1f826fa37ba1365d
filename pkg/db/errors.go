package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure on
// Postgres or sqlite. When constraintName is set, only that constraint matches.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && matchesConstraint(pgErr.ConstraintName, constraintName)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation && matchesConstraint(pqErr.Constraint, constraintName)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return sqliteMatchesConstraint(liteErr.Error(), constraintName)
		}
	}
	return false
}

func matchesConstraint(got, want string) bool {
	return want == "" || got == want
}

// sqlite names the columns, not the index: "UNIQUE constraint failed: t.a, t.b".
func sqliteMatchesConstraint(msg, want string) bool {
	if want == "" {
		return true
	}
	columns, ok := sqliteUniqueColumns[want]
	if !ok {
		return false
	}
	_, failed, found := strings.Cut(msg, "constraint failed: ")
	return found && strings.TrimSpace(failed) == columns
}
