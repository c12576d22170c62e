package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lumensanctum/sanctum/internal/client/entities"
	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/client/securestore"
	"github.com/lumensanctum/sanctum/internal/common"
	"github.com/lumensanctum/sanctum/internal/logging"
)

// AccountService groups the user-initiated session edits. Every change goes
// through Session.Mutate.
type AccountService struct {
	kv      securestore.KV
	session *Session
	roster  *entities.Roster
	clock   Clock
	logger  logging.Logger
}

func NewAccountService(kv securestore.KV, session *Session, roster *entities.Roster, clock Clock, logger logging.Logger) *AccountService {
	return &AccountService{
		kv:      kv,
		session: session,
		roster:  roster,
		clock:   clock,
		logger:  logger.With("component", "account"),
	}
}

// Subscribe moves the user to tier for days. Yearly unlocks every entity;
// other tiers start with an empty selection.
func (s *AccountService) Subscribe(ctx context.Context, tier models.Tier, days int) (*models.User, error) {
	if !tier.Valid() || tier == models.TierFree {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}
	if days <= 0 {
		return nil, fmt.Errorf("subscription length must be positive, got %d", days)
	}

	u, err := s.session.Mutate(ctx, func(u *models.User) error {
		end := s.clock.Now().AddDate(0, 0, days)
		u.Subscription = tier
		u.SubscriptionEndDate = &end
		if tier == models.TierYearly {
			u.AccessibleEntities = s.roster.IDs()
		} else {
			u.AccessibleEntities = []string{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "subscribed", "username", u.Username, "tier", tier, "until", u.SubscriptionEndDate.Format(time.RFC3339))
	return u, nil
}

// SelectEntities replaces the accessible set. Unknown ids are rejected.
func (s *AccountService) SelectEntities(ctx context.Context, ids []string) (*models.User, error) {
	sel := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(sel, id) {
			continue
		}
		if _, ok := s.roster.Get(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
		}
		sel = append(sel, id)
	}
	return s.session.Mutate(ctx, func(u *models.User) error {
		u.AccessibleEntities = sel
		return nil
	})
}

func (s *AccountService) CompleteTour(ctx context.Context) (*models.User, error) {
	return s.setTour(ctx, true)
}

// RestartTour clears the flag so onboarding runs again.
func (s *AccountService) RestartTour(ctx context.Context) (*models.User, error) {
	return s.setTour(ctx, false)
}

func (s *AccountService) setTour(ctx context.Context, done bool) (*models.User, error) {
	return s.session.Mutate(ctx, func(u *models.User) error {
		if u.HasCompletedTour != nil && *u.HasCompletedTour == done {
			return errUnchanged
		}
		u.SetTourCompleted(done)
		return nil
	})
}

// SetAPIKey stores the user's provider key. Credentials are outside the
// checksum, so this never trips integrity checks.
func (s *AccountService) SetAPIKey(ctx context.Context, key string) (*models.User, error) {
	return s.session.Mutate(ctx, func(u *models.User) error {
		u.AppAPIKey = strings.TrimSpace(key)
		return nil
	})
}

// SetEntityAPIKey sets or, with an empty key, removes a per-entity key.
func (s *AccountService) SetEntityAPIKey(ctx context.Context, entityID, key string) (*models.User, error) {
	if _, ok := s.roster.Get(entityID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	key = strings.TrimSpace(key)
	return s.session.Mutate(ctx, func(u *models.User) error {
		if key == "" {
			delete(u.EntityAPIKeys, entityID)
			return nil
		}
		if u.EntityAPIKeys == nil {
			u.EntityAPIKeys = map[string]string{}
		}
		u.EntityAPIKeys[entityID] = key
		return nil
	})
}

// SetIntegrationAPIKey stores the integration key.
func (s *AccountService) SetIntegrationAPIKey(ctx context.Context, key string) (*models.User, error) {
	return s.session.Mutate(ctx, func(u *models.User) error {
		u.IntegrationAPIKey = strings.TrimSpace(key)
		return nil
	})
}

// HideAPIReminder dismisses the missing-key reminder for good.
func (s *AccountService) HideAPIReminder(ctx context.Context) error {
	return s.kv.Set(ctx, common.KeyHideAPIReminder, "true")
}

// Reinitialize restarts an entity. Admin and beta users only.
func (s *AccountService) Reinitialize(ctx context.Context, entityID string, delay time.Duration) error {
	u := s.session.Current()
	if u == nil {
		return common.ErrNoSession
	}
	if !u.Privileged() {
		return common.ErrForbidden
	}
	if err := s.roster.Reinitialize(ctx, entityID, delay); err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownEntity, err)
	}
	s.logger.Info(ctx, "entity reinitializing", "entity", entityID, "by", u.Username)
	return nil
}
