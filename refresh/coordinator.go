package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrWaitTimeout is returned to a queued caller whose wait budget ran out
	// before the in-flight exchange settled.
	ErrWaitTimeout = errors.New("refresh wait timeout")
	// ErrExchangeTimeout is returned when the exchange itself exceeded
	// Config.ExchangeTimeout.
	ErrExchangeTimeout = errors.New("refresh exchange timeout")
	// ErrNoExchange is returned by a Coordinator built without an exchange function.
	ErrNoExchange = errors.New("refresh exchange not configured")
)

// Exchange mints a new access token. It is invoked at most once per
// in-flight refresh, by the leading caller.
type Exchange func(ctx context.Context) (string, error)

// Config bounds how long exchanges and queued callers may take.
// Zero values disable the corresponding bound.
type Config struct {
	ExchangeTimeout time.Duration
	WaitTimeout     time.Duration
}

// Result is delivered to every caller of a settled exchange.
type Result struct {
	Token string
	Err   error
}

// Coordinator runs refresh exchanges under a single-flight policy.
type Coordinator struct {
	exchange Exchange
	cfg      Config

	mu       sync.Mutex
	inFlight bool
	waiters  []chan Result

	exchanges atomic.Uint64
	joined    atomic.Uint64
}

// NewCoordinator returns a [Coordinator] that runs exchange on demand.
func NewCoordinator(exchange Exchange, cfg Config) *Coordinator {
	return &Coordinator{
		exchange: exchange,
		cfg:      cfg,
	}
}

// Refresh returns the token minted by the exchange this call started or joined.
//
// If no exchange is in flight the caller becomes the leader and runs it; otherwise
// the caller is queued until the running exchange settles, Config.WaitTimeout
// elapses, or ctx is done.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	if c == nil || c.exchange == nil {
		return "", ErrNoExchange
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if c.inFlight {
		ch := make(chan Result, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		c.joined.Add(1)
		return c.wait(ctx, ch)
	}
	c.inFlight = true
	c.mu.Unlock()

	c.exchanges.Add(1)
	token, err := c.run(ctx)
	c.settle(Result{Token: token, Err: err})
	return token, err
}

func (c *Coordinator) run(ctx context.Context) (string, error) {
	xctx := context.WithoutCancel(ctx)
	if c.cfg.ExchangeTimeout > 0 {
		var cancel context.CancelFunc
		xctx, cancel = context.WithTimeout(xctx, c.cfg.ExchangeTimeout)
		defer cancel()
	}

	token, err := c.exchange(xctx)
	if err != nil {
		if errors.Is(xctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrExchangeTimeout) {
			return "", fmt.Errorf("%w: %w", ErrExchangeTimeout, err)
		}
		return "", err
	}
	return token, nil
}

// settle releases the in-flight flag and hands the result to every queued
// caller. Handles are buffered, so callers that already left never block it.
func (c *Coordinator) settle(r Result) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.inFlight = false
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- r
	}
}

func (c *Coordinator) wait(ctx context.Context, ch <-chan Result) (string, error) {
	var timeout <-chan time.Time
	if c.cfg.WaitTimeout > 0 {
		timer := time.NewTimer(c.cfg.WaitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-ch:
		return r.Token, r.Err
	case <-timeout:
		return "", ErrWaitTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// InFlight reports whether an exchange is currently running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Waiting returns the number of callers queued behind the running exchange.
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Exchanges returns how many exchanges have been started.
func (c *Coordinator) Exchanges() uint64 {
	return c.exchanges.Load()
}

// Joined returns how many callers were queued behind an exchange they did not lead.
func (c *Coordinator) Joined() uint64 {
	return c.joined.Load()
}
