package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/client/securestore"
	"github.com/lumensanctum/sanctum/internal/common"
	"github.com/lumensanctum/sanctum/internal/logging"
)

type BootState int

const (
	StateNoConsent BootState = iota
	StateDataConsentPending
	StateLoading
	StateClean
	StateValid
	StateTampered
)

func (s BootState) String() string {
	switch s {
	case StateNoConsent:
		return "no-consent"
	case StateDataConsentPending:
		return "data-consent-pending"
	case StateLoading:
		return "loading"
	case StateClean:
		return "clean"
	case StateValid:
		return "valid"
	case StateTampered:
		return "tampered"
	}
	return fmt.Sprintf("BootState(%d)", int(s))
}

// BootResult is what the guard decided at startup.
type BootResult struct {
	State    BootState
	User     *models.User
	Security models.SecurityConfig
	// Drift is set when an allowlisted user's checksum did not match.
	Drift           bool
	RenewalDue      bool
	NeedsTour       bool
	ShowAPIReminder bool
}

// IntegrityGuard validates persisted state on startup and decides between
// continuing the session and wiping everything.
type IntegrityGuard struct {
	kv       securestore.KV
	sessions *SessionStore
	session  *Session
	consent  *ConsentService
	term     *Terminator
	picker   *EntityPicker
	clock    Clock
	logger   logging.Logger
}

func NewIntegrityGuard(kv securestore.KV, sessions *SessionStore, session *Session, consent *ConsentService,
	term *Terminator, picker *EntityPicker, clock Clock, logger logging.Logger) *IntegrityGuard {
	return &IntegrityGuard{
		kv:       kv,
		sessions: sessions,
		session:  session,
		consent:  consent,
		term:     term,
		picker:   picker,
		clock:    clock,
		logger:   logger.With("component", "guard"),
	}
}

// Bootstrap runs the startup checks. It is safe to call again after a
// consent gate changes.
func (g *IntegrityGuard) Bootstrap(ctx context.Context) (BootResult, error) {
	if g.term.Terminated() {
		return BootResult{State: StateTampered}, common.ErrTerminated
	}

	ok, err := g.consent.Given(ctx, models.ConsentGeneral)
	if err != nil {
		return BootResult{}, err
	}
	if !ok {
		return BootResult{State: StateNoConsent}, nil
	}
	ok, err = g.consent.Given(ctx, models.ConsentData)
	if err != nil {
		return BootResult{}, err
	}
	if !ok {
		return BootResult{State: StateDataConsentPending}, nil
	}

	security, err := loadSecurityConfig(ctx, g.kv)
	if err != nil {
		if errors.Is(err, ErrMalformedSecurity) {
			return g.tampered(ctx, "unreadable security config", err)
		}
		return BootResult{State: StateLoading}, err
	}
	res := BootResult{State: StateLoading, Security: security}

	u, stored, found, err := g.sessions.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrMalformedSession) {
			return g.tampered(ctx, "unreadable session record", err)
		}
		return res, err
	}
	if !found {
		res.State = StateClean
		return res, nil
	}

	if actual := models.Checksum(u); actual != stored {
		if !security.IsAuthorized(u.Username) {
			g.logger.Error(ctx, "data integrity check failed", "username", u.Username)
			return g.tampered(ctx, "checksum mismatch", nil)
		}
		g.logger.Warn(ctx, "checksum drift for allowlisted user", "username", u.Username,
			"stored", stored, "actual", actual)
		res.Drift = true
	}

	g.session.Adopt(u)

	if u.SubscriptionExpired(g.clock.Now()) {
		u, err = g.session.Mutate(ctx, func(u *models.User) error {
			normalizeExpired(u, g.picker.pick())
			return nil
		})
		if err != nil {
			return res, err
		}
		res.RenewalDue = true
		g.logger.Info(ctx, "subscription expired, reverted to free tier", "username", u.Username)
	}

	res.State = StateValid
	res.User = u
	res.NeedsTour = !u.TourCompleted()
	res.ShowAPIReminder, err = apiReminderDue(ctx, g.kv, u)
	if err != nil {
		return res, err
	}
	return res, nil
}

func (g *IntegrityGuard) tampered(ctx context.Context, reason string, cause error) (BootResult, error) {
	if cause != nil {
		g.logger.Error(ctx, "failed to load user session", "error", cause)
	}
	if err := g.term.Terminate(ctx, reason); err != nil {
		return BootResult{State: StateTampered}, err
	}
	return BootResult{State: StateTampered}, nil
}

func normalizeExpired(u *models.User, pick []string) {
	u.Subscription = models.TierFree
	u.AccessibleEntities = pick
	u.SubscriptionEndDate = nil
}

// apiReminderDue is true for non-admins without an app key, unless the
// reminder was dismissed.
func apiReminderDue(ctx context.Context, kv securestore.KV, u *models.User) (bool, error) {
	if u.Role == models.RoleAdmin || u.AppAPIKey != "" {
		return false, nil
	}
	hidden, _, err := kv.Get(ctx, common.KeyHideAPIReminder)
	if err != nil {
		return false, err
	}
	return hidden != "true", nil
}
