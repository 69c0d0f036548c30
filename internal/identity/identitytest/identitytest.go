// Package identitytest provides a throwaway SQLite database carrying the
// identity tables for tests.
package identitytest

import (
	"context"
	_ "embed"
	"path/filepath"
	"testing"

	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/database"
)

//go:embed schema.sql
var Schema string

// NewFactory returns a connection factory for a fresh database file in a
// test temp dir, with Schema applied.
func NewFactory(tb testing.TB) *database.ConnectionFactory {
	tb.Helper()
	dsn := filepath.Join(tb.TempDir(), "identity.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)"
	f := database.NewConnectionFactory(database.Config{Driver: "sqlite", DSN: dsn, MaxConns: 1})

	db, err := f.Create(context.Background())
	if err != nil {
		tb.Fatalf("open test database: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(Schema); err != nil {
		tb.Fatalf("apply schema: %v", err)
	}
	return f
}
