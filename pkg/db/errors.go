package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// IsUniqueViolation reports whether err is a unique constraint failure. A non-empty
// constraintName narrows the match to that constraint.
func IsUniqueViolation(err error, constraintName string) bool {
	return isViolation(err, pgUniqueViolation, constraintName, "duplicate key value", "UNIQUE constraint failed")
}

// IsCheckViolation reports whether err is a CHECK constraint failure, such as a seat count
// going negative.
func IsCheckViolation(err error, constraintName string) bool {
	return isViolation(err, pgCheckViolation, constraintName, "violates check constraint", "CHECK constraint failed")
}

func isViolation(err error, pgCode, constraintName string, markers ...string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgCode {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
