package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/lumensanctum/sanctum/internal/client/client"
	"github.com/lumensanctum/sanctum/internal/client/config"
	"github.com/lumensanctum/sanctum/internal/client/entities"
	"github.com/lumensanctum/sanctum/internal/client/securestore"
	"github.com/lumensanctum/sanctum/internal/client/services"
	"github.com/lumensanctum/sanctum/internal/common"
	"github.com/lumensanctum/sanctum/internal/logging"
)

// App is the interactive client: the wired service graph plus the state of
// the consent gates.
type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	roster   *entities.Roster
	session  *services.Session
	guard    *services.IntegrityGuard
	auth     services.AuthService
	account  *services.AccountService
	consent  *services.ConsentService
	security *services.SecurityService
	chat     *services.ChatService
	cooldown *services.Cooldown
	decay    *services.DecayScheduler
	term     *services.Terminator
	boot     services.BootResult
	declined bool
	reader   *bufio.Reader
}

// NewApp opens the local database at c.DatabasePath and wires every service
// around it. The caller must Close the App.
func NewApp(ctx context.Context, c *config.Config, classifier client.Classifier, logger logging.Logger) (*App, error) {
	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}
	return wire(db, c, classifier, services.SystemClock(), nil, logger, bufio.NewReader(os.Stdin)), nil
}

func wire(db *sql.DB, c *config.Config, classifier client.Classifier, clock services.Clock, rng *rand.Rand,
	logger logging.Logger, reader *bufio.Reader) *App {
	a := &App{config: c, logger: logger, db: db, reader: reader, roster: entities.Default()}

	kv := securestore.New(db, logger)
	notifier := services.NotifierFunc(func(_ context.Context, msg string) {
		printlnFn("[notice]", msg)
	})
	picker := services.NewEntityPicker(a.roster, rng)
	sessions := services.NewSessionStore(kv, logger)

	a.session = services.NewSession(sessions)
	a.term = services.NewTerminator(kv, a.session, logger)
	a.security = services.NewSecurityService(kv, a.session, logger)
	a.consent = services.NewConsentService(kv, clock, logger)
	a.cooldown = services.NewCooldown()
	strikes := services.NewStrikeMachine(a.session, a.security, a.cooldown, a.term, clock, notifier, logger)
	a.guard = services.NewIntegrityGuard(kv, sessions, a.session, a.consent, a.term, picker, clock, logger)
	a.decay = services.NewDecayScheduler(a.session, clock, notifier, logger)
	a.auth = services.NewAuthService(kv, a.session, a.roster, picker, a.cooldown, c.Accounts, logger)
	a.account = services.NewAccountService(kv, a.session, a.roster, clock, logger)
	a.chat = services.NewChatService(kv, a.session, a.roster, classifier, strikes, a.term, clock, logger)
	return a
}

func (a *App) Close() error {
	return a.db.Close()
}

// Run validates persisted state, starts the cooldown and decay watchers and
// then blocks in the REPL until the user exits or the session is terminated.
func (a *App) Run(ctx context.Context) error {
	if err := a.bootstrap(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.cooldown.Run(ctx, time.Second)
	go a.decay.Run(ctx, a.config.DecayInterval)

	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

// bootstrap runs the integrity guard and reports what it found. Termination
// is not an error here; the REPL shows the terminus screen instead.
func (a *App) bootstrap(ctx context.Context) error {
	res, err := a.guard.Bootstrap(ctx)
	if err != nil && !errors.Is(err, common.ErrTerminated) {
		return err
	}
	a.boot = res

	switch res.State {
	case services.StateNoConsent:
		printlnFn("Before continuing you must accept the terms of the Sanctum. Type 'consent' to accept or 'decline'.")
	case services.StateDataConsentPending:
		printlnFn("Sanctum stores your conversations on this device. Type 'dataconsent' to accept or 'decline'.")
	case services.StateClean:
		printlnFn("No active session. Type 'login' to begin.")
	case services.StateValid:
		if res.Drift {
			printlnFn("Warning: session checksum drift detected for an authorized user. Please investigate the logs.")
		}
		printlnFn(fmt.Sprintf("Welcome back, %s.", res.User.Username))
		a.announce(res.RenewalDue, res.NeedsTour, res.ShowAPIReminder)
	}
	return nil
}

func (a *App) announce(renewal, tour, reminder bool) {
	if renewal {
		printlnFn("Your subscription has expired. You have been moved to the free tier; use 'subscribe' to renew.")
	}
	if tour {
		printlnFn("New here? Type 'tour' for a walkthrough of the Sanctum.")
	}
	if reminder {
		printlnFn("Tip: set your own provider key with 'apikey <key>' ('hidereminder' to stop this message).")
	}
}

func (a *App) isLoggedIn() bool {
	return a.session.Current() != nil
}

func (a *App) isTerminated() bool {
	return a.term.Terminated()
}

// stage maps the boot state and the decline flag to the REPL's command set.
func (a *App) stage() stage {
	switch {
	case a.declined:
		return stageDeclined
	case a.boot.State == services.StateNoConsent:
		return stageConsent
	case a.boot.State == services.StateDataConsentPending:
		return stageDataConsent
	case a.isLoggedIn():
		return stageSession
	}
	return stageLoggedOut
}

func (a *App) getStatus() string {
	u := a.session.Current()
	if u == nil {
		return a.stage().String()
	}
	s := fmt.Sprintf("%s [%s/%s] strikes:%d", u.Username, u.Role, u.Subscription, u.Strikes)
	if r := a.cooldown.Remaining(); r > 0 {
		s += fmt.Sprintf(" cooldown:%ds", r)
	}
	return s
}

// Terminus prints the screen shown once local state has been wiped.
func (a *App) Terminus() {
	printlnFn("==================== PROTOCOL TERMINUS ====================")
	if reason := a.term.Reason(); reason != "" {
		printlnFn("Reason:", reason)
	}
	printlnFn("All local data on this device has been erased. This session cannot continue.")
}
