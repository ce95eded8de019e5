package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/liaohanzhen/cnoauth/authstate"
	"github.com/liaohanzhen/cnoauth/linktoken"
)

const (
	defaultInterval = time.Minute
	defaultStateTTL = 5 * time.Minute
)

// Worker periodically removes expired login state and abandoned binding
// attempts: auth states older than the TTL, and link tokens never bound to
// an account. Sweeps are idempotent and safe to run alongside live logins;
// the age predicate keeps in-flight states untouched.
type Worker struct {
	states   authstate.Store
	tokens   linktoken.Store
	interval time.Duration
	stateTTL time.Duration
	log      *slog.Logger
	now      func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a Worker.
type Option func(*Worker)

// WithInterval sets the sweep interval.
func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithStateTTL sets how old a state must be before it is swept.
func WithStateTTL(ttl time.Duration) Option {
	return func(w *Worker) {
		if ttl > 0 {
			w.stateTTL = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(w *Worker) {
		if log != nil {
			w.log = log
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// New creates a cleanup worker over the two stores.
func New(states authstate.Store, tokens linktoken.Store, opts ...Option) *Worker {
	w := &Worker{
		states:   states,
		tokens:   tokens,
		interval: defaultInterval,
		stateTTL: defaultStateTTL,
		log:      slog.Default(),
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run performs a single sweep.
func (w *Worker) Run(ctx context.Context) error {
	cutoff := w.now().Add(-w.stateTTL)
	statesRemoved, err := w.states.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	tokensRemoved, err := w.tokens.DeleteUnbound(ctx)
	if err != nil {
		return err
	}

	if statesRemoved > 0 || tokensRemoved > 0 {
		w.log.InfoContext(ctx, "cleanup sweep finished",
			"states_removed", statesRemoved,
			"tokens_removed", tokensRemoved,
		)
	}
	return nil
}

// Start runs sweeps on the configured interval until the context is
// canceled or Close is called. It blocks; run it in its own goroutine.
func (w *Worker) Start(ctx context.Context) error {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			if err := w.Run(ctx); err != nil {
				w.log.ErrorContext(ctx, "cleanup sweep failed", "error", err)
			}
		}
	}
}

// Close stops a running Start loop and waits for it to exit.
func (w *Worker) Close() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	<-w.done
}
