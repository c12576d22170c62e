package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lumensanctum/sanctum/internal/client/client"
	"github.com/lumensanctum/sanctum/internal/client/entities"
	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/client/securestore"
	"github.com/lumensanctum/sanctum/internal/common"
	"github.com/lumensanctum/sanctum/internal/cryptox"
	"github.com/lumensanctum/sanctum/internal/logging"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ---- fakes ----

// fakeClock advances by step on every call. onCall, if set, runs after the
// n-th reading is taken.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	step   time.Duration
	calls  int
	onCall func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: baseTime, step: time.Millisecond}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	c.calls++
	n, t, hook := c.calls, c.now, c.onCall
	c.now = c.now.Add(c.step)
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Notify(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type fakeClassifier struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, req client.ClassifyRequest) (models.Outcome, error)
	calls []client.ClassifyRequest
}

func (f *fakeClassifier) Classify(ctx context.Context, req client.ClassifyRequest) (models.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return models.OutcomeOK{Response: "hello from " + req.Entity.Name}, nil
	}
	return fn(ctx, req)
}

func (f *fakeClassifier) Calls() []client.ClassifyRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.ClassifyRequest(nil), f.calls...)
}

func respondWith(o models.Outcome) func(context.Context, client.ClassifyRequest) (models.Outcome, error) {
	return func(context.Context, client.ClassifyRequest) (models.Outcome, error) { return o, nil }
}

// failingKV fails every transactional write, standing in for a broken medium.
type failingKV struct {
	securestore.KV
}

func (failingKV) InTx(context.Context, func(context.Context, securestore.KV) error) error {
	return errors.New("disk I/O error")
}

// ---- harness ----

type harness struct {
	t            *testing.T
	db           *sql.DB
	kv           securestore.KV
	clock        *fakeClock
	notes        *recordingNotifier
	roster       *entities.Roster
	sessions     *SessionStore
	session      *Session
	term         *Terminator
	terminations atomic.Int32
	security     *SecurityService
	consent      *ConsentService
	cooldown     *Cooldown
	strikes      *StrikeMachine
	guard        *IntegrityGuard
	decay        *DecayScheduler
	auth         AuthService
	account      *AccountService
	classifier   *fakeClassifier
	chat         *ChatService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessAt(t, filepath.Join(t.TempDir(), "sanctum.db"))
}

// newHarnessAt wires a full service graph over the database at path, as a
// fresh process would.
func newHarnessAt(t *testing.T, path string) *harness {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logging.Discard()
	h := &harness{
		t:          t,
		db:         db,
		kv:         securestore.New(db, logger),
		clock:      newFakeClock(),
		notes:      &recordingNotifier{},
		roster:     entities.Default(),
		classifier: &fakeClassifier{},
	}
	picker := NewEntityPicker(h.roster, rand.New(rand.NewPCG(1, 2)))

	h.sessions = NewSessionStore(h.kv, logger)
	h.session = NewSession(h.sessions)
	h.term = NewTerminator(h.kv, h.session, logger, func(string) { h.terminations.Add(1) })
	h.security = NewSecurityService(h.kv, h.session, logger)
	h.consent = NewConsentService(h.kv, h.clock, logger)
	h.cooldown = NewCooldown()
	h.strikes = NewStrikeMachine(h.session, h.security, h.cooldown, h.term, h.clock, h.notes, logger)
	h.guard = NewIntegrityGuard(h.kv, h.sessions, h.session, h.consent, h.term, picker, h.clock, logger)
	h.decay = NewDecayScheduler(h.session, h.clock, h.notes, logger)
	h.auth = NewAuthService(h.kv, h.session, h.roster, picker, h.cooldown, testAccounts(t), logger)
	h.account = NewAccountService(h.kv, h.session, h.roster, h.clock, logger)
	h.chat = NewChatService(h.kv, h.session, h.roster, h.classifier, h.strikes, h.term, h.clock, logger)
	return h
}

var (
	accountsOnce sync.Once
	accounts     []Account
)

// testAccounts hashes the privileged passwords once per test binary.
func testAccounts(t *testing.T) []Account {
	t.Helper()
	accountsOnce.Do(func() {
		for _, a := range []struct {
			name string
			role models.Role
			pass string
		}{
			{"Darb Dlohnier 3661", models.RoleAdmin, "admin-pass"},
			{"Beta Tester 3661", models.RoleBeta, "beta-pass"},
		} {
			salt, verifier, err := cryptox.NewVerifier([]byte(a.pass))
			if err != nil {
				panic(err)
			}
			accounts = append(accounts, Account{Username: a.name, Role: a.role, Salt: salt, Verifier: verifier})
		}
	})
	return accounts
}

func (h *harness) consentAll() {
	h.t.Helper()
	ctx := context.Background()
	_, err := h.consent.Accept(ctx, models.ConsentGeneral, "tester")
	require.NoError(h.t, err)
	_, err = h.consent.Accept(ctx, models.ConsentData, "tester")
	require.NoError(h.t, err)
}

// begin starts a regular user session with the given strike count.
func (h *harness) begin(username string, strikes int) *models.User {
	h.t.Helper()
	u := &models.User{
		Username:           username,
		Role:               models.RoleUser,
		Subscription:       models.TierFree,
		AccessibleEntities: []string{"ent-001", "ent-007", "ent-099"},
		Strikes:            strikes,
	}
	require.NoError(h.t, h.session.Begin(context.Background(), u))
	return u
}

func (h *harness) allow(users ...string) {
	h.t.Helper()
	raw, err := json.Marshal(models.SecurityConfig{AuthorizedUsers: users})
	require.NoError(h.t, err)
	require.NoError(h.t, h.kv.Set(context.Background(), common.KeySecurityConfig, string(raw)))
}

func (h *harness) keys() []string {
	h.t.Helper()
	keys, err := h.kv.Keys(context.Background())
	require.NoError(h.t, err)
	return keys
}

func (h *harness) stored() (*models.User, string) {
	h.t.Helper()
	u, sum, found, err := h.sessions.Load(context.Background())
	require.NoError(h.t, err)
	require.True(h.t, found)
	return u, sum
}
