package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	st         stage
	terminated bool
	calls      []string
	args       map[string][]string
	errs       map[string]error
	// after runs after a call is recorded, so tests can move the stage.
	after map[string]func(f *fakeExec)
}

func newFakeExec(st stage) *fakeExec {
	return &fakeExec{st: st, args: map[string][]string{}, errs: map[string]error{}, after: map[string]func(*fakeExec){}}
}

func (f *fakeExec) stage() stage { return f.st }
func (f *fakeExec) isTerminated() bool { return f.terminated }
func (f *fakeExec) Terminus() { f.calls = append(f.calls, "terminus") }

func (f *fakeExec) rec(name string, args []string) error {
	f.calls = append(f.calls, name)
	if args != nil {
		f.args[name] = args
	}
	if fn := f.after[name]; fn != nil {
		fn(f)
	}
	return f.errs[name]
}

func (f *fakeExec) Consent(context.Context) error { return f.rec("consent", nil) }
func (f *fakeExec) DataConsent(context.Context) error { return f.rec("dataconsent", nil) }
func (f *fakeExec) Decline(context.Context) error { return f.rec("decline", nil) }
func (f *fakeExec) Login(context.Context) error { return f.rec("login", nil) }
func (f *fakeExec) Logout(context.Context) error { return f.rec("logout", nil) }
func (f *fakeExec) Status(context.Context) error { return f.rec("status", nil) }
func (f *fakeExec) Entities(context.Context) error { return f.rec("entities", nil) }
func (f *fakeExec) Chat(_ context.Context, a []string) error { return f.rec("chat", a) }
func (f *fakeExec) Attach(_ context.Context, a []string) error { return f.rec("attach", a) }
func (f *fakeExec) Group(_ context.Context, a []string) error { return f.rec("group", a) }
func (f *fakeExec) History(_ context.Context, a []string) error { return f.rec("history", a) }
func (f *fakeExec) Subscribe(_ context.Context, a []string) error { return f.rec("subscribe", a) }
func (f *fakeExec) Select(_ context.Context, a []string) error { return f.rec("select", a) }
func (f *fakeExec) Tour(_ context.Context, a []string) error { return f.rec("tour", a) }
func (f *fakeExec) APIKey(_ context.Context, a []string) error { return f.rec("apikey", a) }
func (f *fakeExec) HideReminder(context.Context) error { return f.rec("hidereminder", nil) }
func (f *fakeExec) Allow(_ context.Context, a []string) error { return f.rec("allow", a) }
func (f *fakeExec) Reinit(_ context.Context, a []string) error { return f.rec("reinit", a) }
func (f *fakeExec) Audit(_ context.Context, a []string) error { return f.rec("audit", a) }

// captureOutput swaps printlnFn for the duration of the test.
func captureOutput(t *testing.T) func() string {
	t.Helper()
	var (
		mu  sync.Mutex
		buf strings.Builder
	)
	old := printlnFn
	printlnFn = func(a ...any) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return fmt.Fprintln(&buf, a...)
	}
	t.Cleanup(func() { printlnFn = old })
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return buf.String()
	}
}

func input(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func TestREPL_DispatchesSessionCommands(t *testing.T) {
	out := captureOutput(t)
	f := newFakeExec(stageSession)

	runREPL(context.Background(), f, func() string { return "tester" }, input(
		"",
		"status",
		"chat ent-001 hello there",
		"group all of you",
		"history group",
		"subscribe monthly 30",
		"select ent-001 ent-007",
		"allow Darb Dlohnier 3661, Beta Tester 3661",
		"exit",
		"status",
	))

	assert.Equal(t, []string{"status", "chat", "group", "history", "subscribe", "select", "allow"}, f.calls)
	assert.Equal(t, []string{"ent-001", "hello", "there"}, f.args["chat"])
	assert.Equal(t, []string{"ent-001", "ent-007"}, f.args["select"])
	assert.Contains(t, out(), "sanctum> tester > ")
	assert.Contains(t, out(), "Bye!")
}

func TestREPL_ConsentStageRestrictsCommands(t *testing.T) {
	out := captureOutput(t)
	f := newFakeExec(stageConsent)

	runREPL(context.Background(), f, func() string { return "" }, input("login", "chat ent-001 hi", "help", "audit"))

	assert.Equal(t, []string{"audit"}, f.calls)
	assert.Contains(t, out(), "Unknown command: login")
	assert.Contains(t, out(), "Unknown command: chat")
	assert.Contains(t, out(), "Available commands: consent, decline, audit, exit")
}

func TestREPL_StageFollowsCommands(t *testing.T) {
	captureOutput(t)
	f := newFakeExec(stageConsent)
	f.after["consent"] = func(f *fakeExec) { f.st = stageDataConsent }
	f.after["dataconsent"] = func(f *fakeExec) { f.st = stageLoggedOut }
	f.after["login"] = func(f *fakeExec) { f.st = stageSession }

	runREPL(context.Background(), f, func() string { return "" },
		input("dataconsent", "consent", "dataconsent", "login", "status"))

	assert.Equal(t, []string{"consent", "dataconsent", "login", "status"}, f.calls)
}

func TestREPL_PrintsErrorsAndContinues(t *testing.T) {
	out := captureOutput(t)
	f := newFakeExec(stageSession)
	f.errs["chat"] = errors.New("cooldown active: 12s remaining")

	runREPL(context.Background(), f, func() string { return "" }, input("chat ent-001 hi", "status"))

	assert.Equal(t, []string{"chat", "status"}, f.calls)
	assert.Contains(t, out(), "Error: cooldown active: 12s remaining")
}

func TestREPL_StopsOnTermination(t *testing.T) {
	out := captureOutput(t)
	f := newFakeExec(stageSession)
	f.after["chat"] = func(f *fakeExec) { f.terminated = true }

	runREPL(context.Background(), f, func() string { return "" }, input("chat ent-001 hi", "status"))

	require.Equal(t, []string{"chat", "terminus"}, f.calls)
	assert.NotContains(t, out(), "Error:")
}

func TestREPL_EOFWithoutNewline(t *testing.T) {
	captureOutput(t)
	f := newFakeExec(stageLoggedOut)

	runREPL(context.Background(), f, func() string { return "" }, bufio.NewReader(strings.NewReader("entities")))

	assert.Equal(t, []string{"entities"}, f.calls)
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "consent required", stageConsent.String())
	assert.Equal(t, "session", stageSession.String())
	assert.Equal(t, "unknown", stage(42).String())
}
