package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"rfidaccess/internal/apperr"
)

// IsUniqueViolation reports whether err is a unique-constraint failure from either driver,
// returning the constraint name (postgres) or the failing column list (sqlite).
func IsUniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return strings.TrimPrefix(liteErr.Error(), "UNIQUE constraint failed: "), true
	}
	return "", false
}

// ClassifyErr maps a driver error to the application taxonomy.
// Unique violations become Conflict naming the offending field; anything else is StorageUnavailable.
func ClassifyErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Storage(op, err)
	}
	if name, ok := IsUniqueViolation(err); ok {
		field := fieldOf(name)
		return &apperr.Error{Code: apperr.CodeConflict, Field: field, Message: conflictMessage(field), Err: err}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(op + ": not found")
	}
	return apperr.Storage(op, err)
}

func fieldOf(constraint string) string {
	c := strings.ToLower(constraint)
	switch {
	case strings.Contains(c, "badge"):
		return "badge_id"
	case strings.Contains(c, "photo"):
		return "photo"
	case strings.Contains(c, "trimester"):
		return "trimester"
	case strings.Contains(c, "device"), strings.Contains(c, "token"):
		return "device_id"
	}
	return ""
}

func conflictMessage(field string) string {
	switch field {
	case "badge_id":
		return "badge id already assigned to another person"
	case "photo":
		return "photo already used by another person"
	case "trimester":
		return "payment already registered for this trimester"
	}
	return "duplicate value"
}
