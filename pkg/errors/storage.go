package errors

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE values the billing store reacts to.
const (
	sqlstateUniqueViolation      = "23505"
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
	sqlstateQueryCanceled        = "57014"
	sqlstateLockNotAvailable     = "55P03"
)

// pgDetail is the part of a Postgres error worth logging, whichever driver produced it.
type pgDetail struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

func pgDetailOf(err error) (pgDetail, bool) {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return pgDetail{pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message}, true
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return pgDetail{string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message}, true
	}
	return pgDetail{}, false
}

// FromStorage maps a repository failure onto a typed error. Typed errors pass through untouched.
// Contention and cancellation become CodeDependency so callers and the scheduler know a retry can
// succeed; unique violations become CodeConflict.
func FromStorage(err error, action string) error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}
	if stdErrors.Is(err, context.DeadlineExceeded) || stdErrors.Is(err, context.Canceled) {
		return Wrap(CodeDependency, err, action+": interrupted")
	}
	if pg, ok := pgDetailOf(err); ok {
		switch pg.Code {
		case sqlstateSerializationFailure, sqlstateDeadlockDetected, sqlstateLockNotAvailable, sqlstateQueryCanceled:
			return Wrap(CodeDependency, err, fmt.Sprintf("%s: contention (%s)", action, pg.Code))
		case sqlstateUniqueViolation:
			return Wrap(CodeConflict, err, fmt.Sprintf("%s: duplicate %s", action, pg.Constraint))
		}
	}
	return Wrap(CodeInternal, err, fmt.Sprintf("%s: %v", action, err))
}

// ErrorDump is the debug view of an error attached to internal-error responses outside production.
type ErrorDump struct {
	TopMessage   string   `json:"top_message"`
	Code         Code     `json:"code,omitempty"`
	Chain        []string `json:"chain,omitempty"`
	PGCode       string   `json:"pg_code,omitempty"`
	PGConstraint string   `json:"pg_constraint,omitempty"`
	PGTable      string   `json:"pg_table,omitempty"`
	PGColumn     string   `json:"pg_column,omitempty"`
	PGDetail     string   `json:"pg_detail,omitempty"`
	PGMessage    string   `json:"pg_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	if pg, ok := pgDetailOf(err); ok {
		d.PGCode, d.PGConstraint, d.PGTable = pg.Code, pg.Constraint, pg.Table
		d.PGColumn, d.PGDetail, d.PGMessage = pg.Column, pg.Detail, pg.Message
	}
	return d
}
