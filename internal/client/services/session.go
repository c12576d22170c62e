package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/client/securestore"
	"github.com/lumensanctum/sanctum/internal/common"
	"github.com/lumensanctum/sanctum/internal/logging"
)

// SessionStore persists the session record together with its checksum.
// Save is the only code path that writes session_user.
type SessionStore struct {
	kv     securestore.KV
	logger logging.Logger
}

func NewSessionStore(kv securestore.KV, logger logging.Logger) *SessionStore {
	return &SessionStore{kv: kv, logger: logger.With("component", "sessionstore")}
}

// Load returns the stored record and the stored checksum without verifying
// them. found is false when no record exists. A record that is present but
// not valid JSON yields ErrMalformedSession.
func (s *SessionStore) Load(ctx context.Context) (u *models.User, storedChecksum string, found bool, err error) {
	raw, ok, err := s.kv.Get(ctx, common.KeySessionUser)
	if err != nil {
		return nil, "", false, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, "", false, nil
	}

	u = &models.User{}
	if err := json.Unmarshal([]byte(raw), u); err != nil {
		return nil, "", true, fmt.Errorf("%w: %w", ErrMalformedSession, err)
	}

	sum, _, err := s.kv.Get(ctx, common.KeySessionChecksum)
	if err != nil {
		return nil, "", true, fmt.Errorf("load checksum: %w", err)
	}
	return u, sum, true, nil
}

// Save writes the record and a freshly computed checksum in one transaction.
func (s *SessionStore) Save(ctx context.Context, u *models.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		s.logger.Error(ctx, "session serialization failed", "error", err)
		return fmt.Errorf("marshal session: %w", err)
	}
	sum := models.Checksum(u)

	return s.kv.InTx(ctx, func(ctx context.Context, tx securestore.KV) error {
		if err := tx.Set(ctx, common.KeySessionUser, string(raw)); err != nil {
			return err
		}
		return tx.Set(ctx, common.KeySessionChecksum, sum)
	})
}

func (s *SessionStore) Clear(ctx context.Context) error {
	return s.kv.InTx(ctx, func(ctx context.Context, tx securestore.KV) error {
		if err := tx.Remove(ctx, common.KeySessionUser); err != nil {
			return err
		}
		return tx.Remove(ctx, common.KeySessionChecksum)
	})
}

// Session is the live session context handed to every component that needs
// the current user. The record is replaced wholesale on each mutation and
// all read-modify-write cycles are serialized.
type Session struct {
	mu         sync.Mutex
	store      *SessionStore
	user       *models.User
	terminated bool
}

func NewSession(store *SessionStore) *Session {
	return &Session{store: store}
}

// Current returns a copy of the live record, or nil when logged out.
func (s *Session) Current() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.Clone()
}

// Begin persists u and makes it the live record.
func (s *Session) Begin(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return common.ErrTerminated
	}
	if err := s.store.Save(ctx, u); err != nil {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	s.user = u.Clone()
	return nil
}

// Adopt installs an already persisted record without writing it.
func (s *Session) Adopt(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	s.user = u.Clone()
}

// Mutate applies fn to a copy of the live record, persists it and swaps it
// in. If persisting fails the live record is left untouched. The returned
// user is a copy of the new record.
func (s *Session) Mutate(ctx context.Context, fn func(u *models.User) error) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return nil, common.ErrTerminated
	}
	if s.user == nil {
		return nil, common.ErrNoSession
	}

	next := s.user.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, errUnchanged) {
			return s.user.Clone(), nil
		}
		return nil, err
	}
	if err := s.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	s.user = next
	return next.Clone(), nil
}

// End clears the persisted record and tears the session down (logout).
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return common.ErrTerminated
	}
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.user = nil
	return nil
}

// seal drops the live record for good. Waiting on mu guarantees an in-flight
// Mutate has finished writing before the wipe runs.
func (s *Session) seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminated = true
	s.user = nil
}
