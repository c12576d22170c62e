package services

import (
	"context"
	"fmt"

	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/common"
	"github.com/lumensanctum/sanctum/internal/logging"
)

// CooldownMode selects how a strike's cooldown combines with a running one.
type CooldownMode int

const (
	// CooldownAssign replaces the running countdown (one-to-one chat).
	CooldownAssign CooldownMode = iota
	// CooldownMax never shortens the running countdown (group chat).
	CooldownMax
)

// StrikeEffect describes what applying one outcome did.
type StrikeEffect struct {
	Strike     int
	Cooldown   int
	Terminated bool
	LockedOut  bool
	// TamperWarned is set when tampering was reported for an allowlisted user.
	TamperWarned bool
}

// StrikeMachine turns classified outcomes into strikes, cooldowns and
// terminations.
type StrikeMachine struct {
	session  *Session
	security *SecurityService
	cooldown *Cooldown
	term     *Terminator
	clock    Clock
	notifier Notifier
	logger   logging.Logger
}

func NewStrikeMachine(session *Session, security *SecurityService, cooldown *Cooldown, term *Terminator,
	clock Clock, notifier Notifier, logger logging.Logger) *StrikeMachine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &StrikeMachine{
		session:  session,
		security: security,
		cooldown: cooldown,
		term:     term,
		clock:    clock,
		notifier: notifier,
		logger:   logger.With("component", "strikes"),
	}
}

// Gate rejects a send before it reaches the classifier.
func (m *StrikeMachine) Gate() error {
	if m.term.Terminated() {
		return common.ErrTerminated
	}
	u := m.session.Current()
	if u == nil {
		return common.ErrNoSession
	}
	if u.Strikes >= models.MaxStrikes {
		return ErrLockedOut
	}
	if n := m.cooldown.Remaining(); n > 0 {
		return fmt.Errorf("%w: %ds remaining", ErrCooldownActive, n)
	}
	return nil
}

// Apply feeds one outcome into the machine. OK outcomes have no effect.
func (m *StrikeMachine) Apply(ctx context.Context, outcome models.Outcome, mode CooldownMode) (StrikeEffect, error) {
	switch outcome.(type) {
	case models.OutcomeConsentViolation:
		return m.RecordViolation(ctx, mode)
	case models.OutcomeSuspectedTampering:
		return m.ReportTampering(ctx)
	default:
		if m.term.Terminated() {
			return StrikeEffect{}, common.ErrTerminated
		}
		return StrikeEffect{}, nil
	}
}

// RecordViolation adds one strike and sets the matching cooldown, or
// escalates at the strike limit.
func (m *StrikeMachine) RecordViolation(ctx context.Context, mode CooldownMode) (StrikeEffect, error) {
	if m.term.Terminated() {
		return StrikeEffect{}, common.ErrTerminated
	}

	u, err := m.session.Mutate(ctx, func(u *models.User) error {
		now := m.clock.Now()
		u.Strikes++
		u.LastStrikeTimestamp = &now
		return nil
	})
	if err != nil {
		return StrikeEffect{}, err
	}

	eff := StrikeEffect{Strike: u.Strikes}
	m.logger.Warn(ctx, "strike recorded", "username", u.Username, "strikes", u.Strikes)

	switch {
	case u.Strikes >= models.MaxStrikes:
		if m.security.IsAuthorized(ctx, u.Username) {
			eff.LockedOut = true
			m.logger.Warn(ctx, "strike limit reached by allowlisted user, interaction blocked", "username", u.Username)
			m.notifier.Notify(ctx, "Strike limit reached. As an authorized user, self-destruct was averted, but interaction is blocked.")
			return eff, nil
		}
		eff.Terminated = true
		if err := m.term.Terminate(ctx, "strike limit reached"); err != nil {
			return eff, err
		}
		return eff, nil
	case u.Strikes == 1:
		eff.Cooldown = FirstStrikeCooldown
	case u.Strikes == 2:
		eff.Cooldown = SecondStrikeCooldown
	}

	if eff.Cooldown > 0 {
		if mode == CooldownMax {
			m.cooldown.Extend(eff.Cooldown)
		} else {
			m.cooldown.Start(eff.Cooldown)
		}
	}
	return eff, nil
}

// ReportTampering wipes for regular users and only warns allowlisted ones.
func (m *StrikeMachine) ReportTampering(ctx context.Context) (StrikeEffect, error) {
	if m.term.Terminated() {
		return StrikeEffect{}, common.ErrTerminated
	}
	u := m.session.Current()
	if u == nil {
		return StrikeEffect{}, common.ErrNoSession
	}

	if m.security.IsAuthorized(ctx, u.Username) {
		m.logger.Warn(ctx, "tampering suspected for allowlisted user", "username", u.Username)
		m.notifier.Notify(ctx, "Tampering attempt detected by entity. As an authorized user, self-destruct was averted. Please investigate the logs.")
		return StrikeEffect{TamperWarned: true}, nil
	}

	m.logger.Error(ctx, "tampering suspected", "username", u.Username)
	if err := m.term.Terminate(ctx, "tampering suspected by entity"); err != nil {
		return StrikeEffect{Terminated: true}, err
	}
	return StrikeEffect{Terminated: true}, nil
}
