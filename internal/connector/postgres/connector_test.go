package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	c := New()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"plain error", errors.New("duplicate key value violates unique constraint"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsIgnorableMigrationError(t *testing.T) {
	c := New()
	if !c.IsIgnorableMigrationError(&pgconn.PgError{Code: "42701"}) {
		t.Error("duplicate column should be ignorable")
	}
	if c.IsIgnorableMigrationError(&pgconn.PgError{Code: "42P01"}) {
		t.Error("undefined table should not be ignorable")
	}
}

func TestDialect(t *testing.T) {
	c := New()
	if !c.SupportsReturning() {
		t.Error("postgres should support RETURNING")
	}
	if c.DriverName() != "postgres" {
		t.Errorf("DriverName() = %q, want postgres", c.DriverName())
	}
	if got := c.ColumnTypes().PrimaryKey; got != "BIGSERIAL PRIMARY KEY" {
		t.Errorf("PrimaryKey = %q", got)
	}
	got := c.CreateIndexSQL("idx_a", "appointments", "provider_id", "appt_date")
	want := "CREATE INDEX IF NOT EXISTS idx_a ON appointments (provider_id, appt_date)"
	if got != want {
		t.Errorf("CreateIndexSQL() = %q, want %q", got, want)
	}
}
