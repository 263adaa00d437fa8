package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_billing_periods_establishment_code", Message: "duplicate key value violates unique constraint"}

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pg any constraint", err: pgErr, want: true},
		{name: "pg matching constraint", err: fmt.Errorf("insert: %w", pgErr), constraint: "ux_billing_periods_establishment_code", want: true},
		{name: "pg other constraint", err: pgErr, constraint: "ux_other", want: false},
		{name: "pg other code", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "sqlite unique", err: errors.New("UNIQUE constraint failed: billing_periods.establishment_id, billing_periods.period_code"), constraint: "ux_billing_periods_establishment_code", want: true},
		{name: "plain message", err: errors.New(`duplicate key value violates unique constraint "ux_billing_periods_establishment_code"`), constraint: "ux_billing_periods_establishment_code", want: true},
		{name: "unrelated", err: errors.New("connection refused"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("IsUniqueViolation() = %v, want %v", got, tc.want)
			}
		})
	}
}
