package verifyflow

import (
	"context"
	"sync"
	"time"

	"github.com/miyomint/storefront/pkg/logger"
	"github.com/miyomint/storefront/services/auth/internal/domain"
)

// State of a verification run. Loading is the only non-terminal state; no
// transition ever leaves a terminal one.
type State string

const (
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateExpired State = "expired"
	StateError   State = "error"
)

const (
	resolveAttempts = 5
	resolveBackoff  = 300 * time.Millisecond
	redirectDelay   = 2500 * time.Millisecond
	homeRoute       = "/"
)

// Exchanger converts inbound link material into an active session.
type Exchanger interface {
	ExchangeLinkForSession(ctx context.Context, rawURL string) (*domain.Session, error)
	ResolveUser(ctx context.Context, accessToken string) (int64, error)
}

// Profiles is the slice of the profile repository the flow needs.
type Profiles interface {
	Update(ctx context.Context, id int64, patch *domain.ProfilePatch) (*domain.User, error)
}

// Flow drives one inbound verification link to a terminal state. A Flow runs
// exactly once; re-invoking Run returns the state already reached.
type Flow struct {
	exchanger Exchanger
	profiles  Profiles

	sleep      func(time.Duration)
	now        func() time.Time
	onRedirect func(target string)
	schedule   func(d time.Duration, fn func())

	mu        sync.Mutex
	state     State
	ran       bool
	cancelled bool
}

type Option func(*Flow)

// WithSleep replaces the backoff sleep between user-resolution attempts.
func WithSleep(fn func(time.Duration)) Option {
	return func(f *Flow) { f.sleep = fn }
}

// WithClock replaces the time source.
func WithClock(fn func() time.Time) Option {
	return func(f *Flow) { f.now = fn }
}

// WithRedirect sets the callback fired when the scheduled post-success
// redirect lands. The target never carries token material.
func WithRedirect(fn func(target string)) Option {
	return func(f *Flow) { f.onRedirect = fn }
}

// WithScheduler replaces the delayed-execution primitive (timers in
// production, immediate invocation in tests).
func WithScheduler(fn func(d time.Duration, fn func())) Option {
	return func(f *Flow) { f.schedule = fn }
}

func New(exchanger Exchanger, profiles Profiles, opts ...Option) *Flow {
	f := &Flow{
		exchanger:  exchanger,
		profiles:   profiles,
		sleep:      time.Sleep,
		now:        time.Now,
		onRedirect: func(string) {},
		state:      StateLoading,
	}
	f.schedule = func(d time.Duration, fn func()) {
		time.AfterFunc(d, fn)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the currently visible state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Cancel suppresses any further visible transition. In-flight calls run to
// completion and are discarded; they are not interrupted.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = true
}

// Run executes the verification sequence once and returns the terminal state
// it computed. Subsequent calls are no-ops returning the visible state.
func (f *Flow) Run(ctx context.Context, rawURL string) State {
	f.mu.Lock()
	if f.ran {
		state := f.state
		f.mu.Unlock()
		return state
	}
	f.ran = true
	f.mu.Unlock()

	// No usable token material: terminal error without touching the backend.
	creds := domain.ParseLinkURL(rawURL)
	if creds.Empty() {
		f.setState(StateError)
		return StateError
	}

	sess, err := f.exchanger.ExchangeLinkForSession(ctx, rawURL)
	if err != nil {
		if domain.ClassifyExchangeError(err).Kind == domain.KindLinkExpired {
			f.setState(StateExpired)
			return StateExpired
		}
		logger.ErrorContext(ctx, "Link exchange failed", "error", err)
		f.setState(StateError)
		return StateError
	}

	userID := f.resolveUser(ctx, sess)

	if userID != 0 {
		verified := true
		now := f.now()
		patch := &domain.ProfilePatch{EmailVerified: &verified, VerifiedAt: &now}
		if _, err := f.profiles.Update(ctx, userID, patch); err != nil {
			// Identity confirmation is authoritative; the flag write is
			// best effort and never downgrades the outcome.
			logger.ErrorContext(ctx, "Failed to persist email_verified flag", "error", err, "user_id", userID)
		}
	}

	f.setState(StateSuccess)

	f.schedule(redirectDelay, func() {
		f.mu.Lock()
		cancelled := f.cancelled
		f.mu.Unlock()
		if !cancelled {
			f.onRedirect(homeRoute)
		}
	})

	return StateSuccess
}

// resolveUser tolerates eventual-consistency lag in the identity backend: a
// bounded number of attempts with a fixed backoff, then give up and proceed
// without a resolved id.
func (f *Flow) resolveUser(ctx context.Context, sess *domain.Session) int64 {
	if sess == nil {
		return 0
	}
	if sess.User != nil && sess.User.ID != 0 {
		return sess.User.ID
	}

	for attempt := 0; attempt < resolveAttempts; attempt++ {
		if attempt > 0 {
			f.sleep(resolveBackoff)
		}
		id, err := f.exchanger.ResolveUser(ctx, sess.AccessToken)
		if err == nil && id != 0 {
			return id
		}
	}
	return 0
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelled {
		return
	}
	f.state = s
}
