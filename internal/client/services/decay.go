package services

import (
	"context"
	"errors"
	"time"

	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/common"
	"github.com/lumensanctum/sanctum/internal/logging"
)

const (
	FirstStrikeDecay  = 7 * 24 * time.Hour
	SecondStrikeDecay = 14 * 24 * time.Hour
)

// DecayScheduler forgives strikes after sustained good conduct.
type DecayScheduler struct {
	session  *Session
	clock    Clock
	notifier Notifier
	logger   logging.Logger
}

func NewDecayScheduler(session *Session, clock Clock, notifier Notifier, logger logging.Logger) *DecayScheduler {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &DecayScheduler{
		session:  session,
		clock:    clock,
		notifier: notifier,
		logger:   logger.With("component", "decay"),
	}
}

// Check applies at most one decay step. Without a live session it does
// nothing.
func (d *DecayScheduler) Check(ctx context.Context) (bool, error) {
	var notice string
	u, err := d.session.Mutate(ctx, func(u *models.User) error {
		if u.LastStrikeTimestamp == nil || u.Strikes == 0 {
			return errUnchanged
		}
		elapsed := d.clock.Now().Sub(*u.LastStrikeTimestamp)

		switch {
		case u.Strikes == 1 && elapsed > FirstStrikeDecay:
			u.Strikes = 0
			notice = "Your strike count has been reset to 0 due to a week of positive conduct. Thank you."
		case u.Strikes == 2 && elapsed > SecondStrikeDecay:
			u.Strikes = 1
			notice = "Your strike count has been reduced to 1 due to two weeks of positive conduct. Thank you."
		default:
			return errUnchanged
		}
		u.LastStrikeTimestamp = nil
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrNoSession) || errors.Is(err, common.ErrTerminated) {
			return false, nil
		}
		return false, err
	}
	if notice == "" {
		return false, nil
	}

	d.logger.Info(ctx, "strikes decayed", "username", u.Username, "strikes", u.Strikes)
	d.notifier.Notify(ctx, notice)
	return true, nil
}

// Run checks immediately and then once per interval until ctx is done.
func (d *DecayScheduler) Run(ctx context.Context, interval time.Duration) {
	d.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

func (d *DecayScheduler) runOnce(ctx context.Context) {
	if _, err := d.Check(ctx); err != nil {
		d.logger.Warn(ctx, "decay check failed", "error", err)
	}
}
