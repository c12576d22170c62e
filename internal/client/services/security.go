package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/client/securestore"
	"github.com/lumensanctum/sanctum/internal/common"
	"github.com/lumensanctum/sanctum/internal/logging"
)

// SecurityService owns the allowlist of users exempt from destructive
// integrity responses.
type SecurityService struct {
	kv      securestore.KV
	session *Session
	logger  logging.Logger
}

func NewSecurityService(kv securestore.KV, session *Session, logger logging.Logger) *SecurityService {
	return &SecurityService{kv: kv, session: session, logger: logger.With("component", "security")}
}

// Config returns the stored config, or an empty one when none is stored.
func (s *SecurityService) Config(ctx context.Context) (models.SecurityConfig, error) {
	return loadSecurityConfig(ctx, s.kv)
}

func loadSecurityConfig(ctx context.Context, kv securestore.KV) (models.SecurityConfig, error) {
	cfg := models.SecurityConfig{AuthorizedUsers: []string{}}
	raw, ok, err := kv.Get(ctx, common.KeySecurityConfig)
	if err != nil {
		return cfg, fmt.Errorf("load security config: %w", err)
	}
	if !ok {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return models.SecurityConfig{}, fmt.Errorf("%w: %w", ErrMalformedSecurity, err)
	}
	if cfg.AuthorizedUsers == nil {
		cfg.AuthorizedUsers = []string{}
	}
	return cfg, nil
}

// IsAuthorized reports whether username is allowlisted. A config that
// cannot be read counts as an empty allowlist.
func (s *SecurityService) IsAuthorized(ctx context.Context, username string) bool {
	cfg, err := s.Config(ctx)
	if err != nil {
		s.logger.Error(ctx, "security config unavailable, treating allowlist as empty", "error", err)
		return false
	}
	return cfg.IsAuthorized(username)
}

// Update replaces the allowlist. Only admins may call it.
func (s *SecurityService) Update(ctx context.Context, users []string) (models.SecurityConfig, error) {
	u := s.session.Current()
	if u == nil {
		return models.SecurityConfig{}, common.ErrNoSession
	}
	if u.Role != models.RoleAdmin {
		return models.SecurityConfig{}, common.ErrForbidden
	}

	cfg := models.SecurityConfig{AuthorizedUsers: models.NormalizeUsers(users)}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return models.SecurityConfig{}, fmt.Errorf("marshal security config: %w", err)
	}
	if err := s.kv.Set(ctx, common.KeySecurityConfig, string(raw)); err != nil {
		return models.SecurityConfig{}, fmt.Errorf("save security config: %w", err)
	}
	s.logger.Info(ctx, "security config updated", "by", u.Username, "authorized", len(cfg.AuthorizedUsers))
	return cfg, nil
}
