package services

import (
	"context"
	"sync"

	"github.com/lumensanctum/sanctum/internal/client/securestore"
	"github.com/lumensanctum/sanctum/internal/logging"
)

// Terminator performs the destructive wipe. It fires at most once per
// process and the terminated state never resets.
type Terminator struct {
	once    sync.Once
	done    chan struct{}
	kv      securestore.KV
	session *Session
	logger  logging.Logger
	hooks   []func(reason string)

	mu     sync.Mutex
	reason string
	err    error
}

// NewTerminator wires the wipe. Each hook runs once, after the wipe.
func NewTerminator(kv securestore.KV, session *Session, logger logging.Logger, hooks ...func(reason string)) *Terminator {
	return &Terminator{
		done:    make(chan struct{}),
		kv:      kv,
		session: session,
		logger:  logger.With("component", "terminator"),
		hooks:   hooks,
	}
}

// Terminate seals the session and clears every managed key. Subsequent
// calls are no-ops that return the first call's result.
func (t *Terminator) Terminate(ctx context.Context, reason string) error {
	t.once.Do(func() {
		t.session.seal()

		err := t.kv.ClearAll(context.WithoutCancel(ctx))
		if err != nil {
			t.logger.Error(ctx, "wipe failed", "reason", reason, "error", err)
		} else {
			t.logger.Error(ctx, "protocol terminus: local state wiped", "reason", reason)
		}

		t.mu.Lock()
		t.reason, t.err = reason, err
		t.mu.Unlock()
		close(t.done)

		for _, h := range t.hooks {
			h(reason)
		}
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Terminator) Terminated() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done is closed once the wipe has run.
func (t *Terminator) Done() <-chan struct{} { return t.done }

func (t *Terminator) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}
