package services

import (
	"context"
	"strings"

	"github.com/lumensanctum/sanctum/internal/client/entities"
	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/client/securestore"
	"github.com/lumensanctum/sanctum/internal/common"
	"github.com/lumensanctum/sanctum/internal/cryptox"
	"github.com/lumensanctum/sanctum/internal/logging"
)

// Account is a privileged login. Salt and Verifier are hex, as produced by
// cryptox.NewVerifier.
type Account struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	Salt     string      `json:"salt"`
	Verifier string      `json:"verifier"`
}

type LoginResult struct {
	User            *models.User
	NeedsTour       bool
	ShowAPIReminder bool
}

// AuthService starts and ends sessions.
//
// Contract:
//   - Login: privileged usernames (matched case-insensitively) must present
//     the right password; any other non-empty pair opens a free session.
//   - Logout: clear the persisted session and drop the live one.
//   - Both reset the cooldown, which belongs to the session that started it.
type AuthService interface {
	Login(ctx context.Context, username string, password []byte) (*LoginResult, error)
	Logout(ctx context.Context) error
}

type authService struct {
	kv       securestore.KV
	session  *Session
	roster   *entities.Roster
	picker   *EntityPicker
	cooldown *Cooldown
	accounts []Account
	logger   logging.Logger
}

func NewAuthService(kv securestore.KV, session *Session, roster *entities.Roster, picker *EntityPicker,
	cooldown *Cooldown, accounts []Account, logger logging.Logger) AuthService {
	return &authService{
		kv:       kv,
		session:  session,
		roster:   roster,
		picker:   picker,
		cooldown: cooldown,
		accounts: accounts,
		logger:   logger.With("component", "auth"),
	}
}

func (a *authService) privileged(username string) (Account, bool) {
	for _, acc := range a.accounts {
		if strings.EqualFold(acc.Username, username) {
			return acc, true
		}
	}
	return Account{}, false
}

func (a *authService) Login(ctx context.Context, username string, password []byte) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) == 0 {
		return nil, common.ErrInvalidCredentials
	}

	var u *models.User
	if acc, ok := a.privileged(username); ok {
		match, err := cryptox.CheckPassword(password, acc.Salt, acc.Verifier)
		if err != nil {
			a.logger.Error(ctx, "privileged account has an unusable verifier", "username", acc.Username, "error", err)
			return nil, common.ErrInvalidCredentials
		}
		if !match {
			a.logger.Warn(ctx, "failed privileged login", "username", acc.Username)
			return nil, common.ErrInvalidCredentials
		}
		u = &models.User{
			Username:           acc.Username,
			Role:               acc.Role,
			Subscription:       models.TierYearly,
			AccessibleEntities: a.roster.IDs(),
		}
	} else {
		u = &models.User{
			Username:           username,
			Role:               models.RoleUser,
			Subscription:       models.TierFree,
			AccessibleEntities: a.picker.pick(),
		}
	}

	if err := a.session.Begin(ctx, u); err != nil {
		return nil, err
	}
	a.cooldown.Start(0)
	a.logger.Info(ctx, "session started", "username", u.Username, "role", u.Role)

	show, err := apiReminderDue(ctx, a.kv, u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u.Clone(), NeedsTour: !u.TourCompleted(), ShowAPIReminder: show}, nil
}

func (a *authService) Logout(ctx context.Context) error {
	u := a.session.Current()
	if err := a.session.End(ctx); err != nil {
		return err
	}
	a.cooldown.Start(0)
	if u != nil {
		a.logger.Info(ctx, "session ended", "username", u.Username)
	}
	return nil
}
