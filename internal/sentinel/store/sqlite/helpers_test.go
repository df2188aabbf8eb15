package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"

	"github.com/sentinel-access/sentinel/server/internal/db"
	sqlitestore "github.com/sentinel-access/sentinel/server/internal/sentinel/store/sqlite"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production. The connection is closed when the test ends.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// The shared-cache URI keeps the database alive for as long as the pool
	// holds a connection.
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		t.Name(),
	)

	conn, err := sql.Open("sqlite", dsn)
	require.NoError(t, err, "sql.Open")

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	require.NoError(t, conn.Ping(), "ping")
	require.NoError(t, db.Migrate(context.Background(), conn, zaptest.NewLogger(t)), "migrate")

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn, closed when the test ends.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn, zaptest.NewLogger(t))
	t.Cleanup(func() { w.Close() })
	return w
}

// newTestStore wires a Store over a fresh database and counts skipped rows
// per table.
func newTestStore(t *testing.T) (*sqlitestore.Store, *sql.DB, map[string]int) {
	t.Helper()

	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	skipped := map[string]int{}
	s := sqlitestore.New(conn, w, zaptest.NewLogger(t),
		sqlitestore.WithMalformedHook(func(table string) { skipped[table]++ }),
	)
	return s, conn, skipped
}
