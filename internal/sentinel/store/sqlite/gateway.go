package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	dbpkg "github.com/sentinel-access/sentinel/server/internal/db"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/store"
)

// Store is the SQLite-backed Gateway. Reads go straight to the pool; writes
// are funnelled through the single-writer worker.
type Store struct {
	db        *sql.DB
	writer    *dbpkg.Worker
	logger    *zap.Logger
	malformed func(table string)
}

var _ store.Gateway = (*Store)(nil)

type Option func(*Store)

// WithMalformedHook is called once per row skipped while loading because it
// could not be decoded.
func WithMalformedHook(fn func(table string)) Option {
	return func(s *Store) { s.malformed = fn }
}

func New(db *sql.DB, writer *dbpkg.Worker, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{db: db, writer: writer, logger: logger, malformed: func(string) {}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Store) skip(table, id string, reason string) {
	s.logger.Warn("skipping malformed row",
		zap.String("table", table),
		zap.String("id", id),
		zap.String("reason", reason),
	)
	s.malformed(table)
}
