package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/lumensanctum/sanctum/internal/common"
	"github.com/lumensanctum/sanctum/internal/cryptox"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts the user for credentials and starts a session.
//
// Privileged accounts must present their configured password; any other
// non-empty pair opens a free session with three random entities. The
// password is securely wiped before returning.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(password)

	res, err := a.auth.Login(ctx, userName, password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			a.logger.Warn(ctx, "login unsuccessful", "username", userName)
		}
		return err
	}

	printlnFn(fmt.Sprintf("Welcome, %s. Tier: %s. Entities: %d.", res.User.Username, res.User.Subscription,
		len(res.User.AccessibleEntities)))
	a.announce(false, res.NeedsTour, res.ShowAPIReminder)
	return nil
}

// Logout clears the persisted session and drops the live one.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	printlnFn("Logged out.")
	return nil
}
