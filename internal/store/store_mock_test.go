package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/ehrgate/ehrgate/internal/connector"
	"github.com/ehrgate/ehrgate/internal/model"
)

var errMockUnique = errors.New("mock: unique violation")

// mockConn is a connector.Connector over a sqlmock database that behaves
// like a RETURNING-capable dialect.
type mockConn struct {
	db *sqlx.DB
}

func (m *mockConn) Connect(connector.ConnectionConfig) error { return nil }
func (m *mockConn) Disconnect() error                        { return m.db.Close() }
func (m *mockConn) Ping(ctx context.Context) error           { return m.db.PingContext(ctx) }
func (m *mockConn) DB() *sqlx.DB                             { return m.db }
func (m *mockConn) ColumnTypes() connector.ColumnTypes       { return connector.ColumnTypes{} }
func (m *mockConn) CreateIndexSQL(string, string, ...string) string {
	return ""
}
func (m *mockConn) IsIgnorableMigrationError(error) bool { return false }
func (m *mockConn) DriverName() string                  { return "mock" }
func (m *mockConn) SupportsReturning() bool             { return true }
func (m *mockConn) IsUniqueViolation(err error) bool    { return errors.Is(err, errMockUnique) }

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	conn := &mockConn{db: sqlx.NewDb(db, "sqlite")}
	t.Cleanup(func() { conn.Disconnect() })
	return newStore(conn), mock
}

func TestInsertUsesReturning(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO providers") + ".*" + regexp.QuoteMeta("RETURNING id")).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	p := &model.Provider{NPI: "1234567890", Name: "Dr. Chen"}
	if err := s.CreateProvider(context.Background(), p); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	if p.ID != 42 {
		t.Errorf("ID = %d, want 42", p.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUniqueViolationMapsToDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectPrepare("INSERT INTO patients").
		ExpectQuery().
		WillReturnError(errMockUnique)

	err := s.CreatePatient(context.Background(), &model.Patient{MRN: "MRN000001"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestQueryErrorIsWrapped(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery("SELECT .* FROM oauth_clients").WillReturnError(boom)

	_, err := s.GetActiveCredential(context.Background(), "client_x", "app")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("driver failure must not look like a missing row")
	}
}

func TestTouchCredentialError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE oauth_clients SET last_used").
		WithArgs(sqlmock.AnyArg(), "client_x").
		WillReturnError(errors.New("disk full"))

	if err := s.TouchCredential(context.Background(), "client_x"); err == nil {
		t.Fatal("expected error")
	}
}
