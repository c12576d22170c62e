// Package securestore is the obfuscated key/value store every other client
// component persists through.
//
// Values are transformed with cryptox.Obfuscate before they reach the
// metadata table and reversed on read. A value that cannot be reversed is
// treated as corruption: it is logged, deleted, and reported as absent, so
// callers never see the difference between "corrupt" and "missing".
package securestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lumensanctum/sanctum/internal/client/repositories/metadata"
	"github.com/lumensanctum/sanctum/internal/cryptox"
	"github.com/lumensanctum/sanctum/internal/dbx"
	"github.com/lumensanctum/sanctum/internal/logging"
)

// KV is the store contract. Store implements it; InTx hands fn a KV bound to
// the transaction.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// ClearAll removes every key the application owns.
	ClearAll(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
	InTx(ctx context.Context, fn func(ctx context.Context, tx KV) error) error
}

type Store struct {
	db     *sql.DB
	repo   metadata.Repository
	logger logging.Logger
	inTx   bool
}

func New(db *sql.DB, logger logging.Logger) *Store {
	return &Store{
		db:     db,
		repo:   metadata.NewSQLiteRepository(db),
		logger: logger.With("component", "securestore"),
	}
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.repo.Set(ctx, key, cryptox.Obfuscate([]byte(value)))
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.repo.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}

	plain, err := cryptox.Deobfuscate(raw)
	if err != nil {
		s.logger.Warn(ctx, "discarding undecodable value", "key", key, "error", err)
		if err := s.repo.Delete(ctx, key); err != nil {
			return "", false, fmt.Errorf("remove corrupt %s: %w", key, err)
		}
		return "", false, nil
	}
	return string(plain), true, nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}

func (s *Store) ClearAll(ctx context.Context) error {
	return s.repo.Clear(ctx)
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.repo.Keys(ctx)
}

// InTx runs fn with a store bound to a single transaction; either every
// write in fn lands or none does. Nested calls reuse the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx KV) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &Store{
			db:     s.db,
			repo:   metadata.NewSQLiteRepository(tx),
			logger: s.logger,
			inTx:   true,
		})
	})
}
