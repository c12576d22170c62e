package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lumensanctum/sanctum/internal/common"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

type stage int

const (
	stageConsent stage = iota
	stageDataConsent
	stageDeclined
	stageLoggedOut
	stageSession
)

func (s stage) String() string {
	switch s {
	case stageConsent:
		return "consent required"
	case stageDataConsent:
		return "data consent required"
	case stageDeclined:
		return "declined"
	case stageLoggedOut:
		return "not logged in"
	case stageSession:
		return "session"
	}
	return "unknown"
}

// commands lists what each stage accepts, in help order. help, exit and quit
// are always accepted.
var commands = map[stage][]string{
	stageConsent:     {"consent", "decline", "audit"},
	stageDataConsent: {"dataconsent", "decline", "audit"},
	stageDeclined:    {"consent"},
	stageLoggedOut:   {"login", "entities", "audit"},
	stageSession: {"status", "entities", "chat", "attach", "group", "history", "subscribe", "select",
		"tour", "apikey", "hidereminder", "allow", "reinit", "audit", "logout"},
}

func allowed(s stage, cmd string) bool {
	for _, c := range commands[s] {
		if c == cmd {
			return true
		}
	}
	return false
}

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	stage() stage
	isTerminated() bool
	Terminus()

	Consent(ctx context.Context) error
	DataConsent(ctx context.Context) error
	Decline(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	Entities(ctx context.Context) error
	Chat(ctx context.Context, args []string) error
	Attach(ctx context.Context, args []string) error
	Group(ctx context.Context, args []string) error
	History(ctx context.Context, args []string) error
	Subscribe(ctx context.Context, args []string) error
	Select(ctx context.Context, args []string) error
	Tour(ctx context.Context, args []string) error
	APIKey(ctx context.Context, args []string) error
	HideReminder(ctx context.Context) error
	Allow(ctx context.Context, args []string) error
	Reinit(ctx context.Context, args []string) error
	Audit(ctx context.Context, args []string) error
}

// runREPL starts a read-eval-print loop for the Sanctum client.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a' if the current stage accepts it. The stage
// follows the consent gates and the login state, so before consent only
// consent, decline and audit are offered.
//
// Errors returned by command handlers are printed and the loop continues.
// The loop exits on EOF, on "exit" or "quit", or once the session has been
// terminated, in which case the terminus screen is shown first.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if a.isTerminated() {
			a.Terminus()
			return
		}

		printlnFn(fmt.Sprintf("sanctum> %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn("Available commands:", strings.Join(commands[a.stage()], ", ")+", exit")
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		if !allowed(a.stage(), cmd) {
			printlnFn("Unknown command:", cmd)
			continue
		}

		report(dispatch(ctx, a, cmd, args))

		if err != nil {
			return
		}
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "consent":
		return a.Consent(ctx)
	case "dataconsent":
		return a.DataConsent(ctx)
	case "decline":
		return a.Decline(ctx)
	case "login":
		return a.Login(ctx)
	case "logout":
		return a.Logout(ctx)
	case "status":
		return a.Status(ctx)
	case "entities":
		return a.Entities(ctx)
	case "chat":
		return a.Chat(ctx, args)
	case "attach":
		return a.Attach(ctx, args)
	case "group":
		return a.Group(ctx, args)
	case "history":
		return a.History(ctx, args)
	case "subscribe":
		return a.Subscribe(ctx, args)
	case "select":
		return a.Select(ctx, args)
	case "tour":
		return a.Tour(ctx, args)
	case "apikey":
		return a.APIKey(ctx, args)
	case "hidereminder":
		return a.HideReminder(ctx)
	case "allow":
		return a.Allow(ctx, args)
	case "reinit":
		return a.Reinit(ctx, args)
	case "audit":
		return a.Audit(ctx, args)
	}
	return fmt.Errorf("unhandled command %q", cmd)
}

// report prints a command error. Termination is left to the loop, which
// shows the terminus screen on its next pass.
func report(err error) {
	if err == nil || errors.Is(err, common.ErrTerminated) {
		return
	}
	printlnFn("Error:", err.Error())
}
