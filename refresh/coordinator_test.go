package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRefreshSingleExchangeForConcurrentCallers(t *testing.T) {
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	c := NewCoordinator(func(ctx context.Context) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return "T2", nil
	}, Config{})

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan Result, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			token, err := c.Refresh(context.Background())
			results <- Result{Token: token, Err: err}
		}()
	}

	waitFor(t, func() bool { return c.InFlight() && c.Waiting() == n-1 })
	close(release)
	wg.Wait()
	close(results)

	for r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected refresh error: %v", r.Err)
		}
		if r.Token != "T2" {
			t.Fatalf("expected T2, got %q", r.Token)
		}
	}
	if calls != 1 {
		t.Fatalf("expected exactly one exchange, got %d", calls)
	}
	if got := c.Exchanges(); got != 1 {
		t.Fatalf("expected Exchanges()=1, got %d", got)
	}
	if got := c.Joined(); got != n-1 {
		t.Fatalf("expected %d joined callers, got %d", n-1, got)
	}
	if c.InFlight() {
		t.Fatal("expected no exchange in flight after settle")
	}
}

func TestRefreshFailureRejectsAllQueuedCallers(t *testing.T) {
	boom := errors.New("refresh rejected")
	release := make(chan struct{})
	c := NewCoordinator(func(ctx context.Context) (string, error) {
		<-release
		return "", boom
	}, Config{})

	const n = 4
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := c.Refresh(context.Background())
			errs <- err
		}()
	}
	waitFor(t, func() bool { return c.Waiting() == n-1 })
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, boom) {
			t.Fatalf("expected refresh failure for every caller, got %v", err)
		}
	}
}

func TestRefreshSequentialCallsStartNewExchanges(t *testing.T) {
	n := 0
	c := NewCoordinator(func(ctx context.Context) (string, error) {
		n++
		return "T", nil
	}, Config{})

	for i := 0; i < 3; i++ {
		if _, err := c.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if n != 3 {
		t.Fatalf("expected three exchanges, got %d", n)
	}
}

func TestRefreshWaiterTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := NewCoordinator(func(ctx context.Context) (string, error) {
		<-release
		return "T", nil
	}, Config{WaitTimeout: 20 * time.Millisecond})

	go func() { _, _ = c.Refresh(context.Background()) }()
	waitFor(t, c.InFlight)

	start := time.Now()
	_, err := c.Refresh(context.Background())
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("waiter did not honor its wait budget")
	}
}

func TestRefreshWaiterHonorsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := NewCoordinator(func(ctx context.Context) (string, error) {
		<-release
		return "T", nil
	}, Config{})

	go func() { _, _ = c.Refresh(context.Background()) }()
	waitFor(t, c.InFlight)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Refresh(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRefreshExchangeTimeout(t *testing.T) {
	c := NewCoordinator(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, Config{ExchangeTimeout: 10 * time.Millisecond})

	_, err := c.Refresh(context.Background())
	if !errors.Is(err, ErrExchangeTimeout) {
		t.Fatalf("expected ErrExchangeTimeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline error, got %v", err)
	}
}

func TestRefreshLeaderCancelDoesNotAbortExchange(t *testing.T) {
	release := make(chan struct{})
	exchangeErr := make(chan error, 1)
	c := NewCoordinator(func(ctx context.Context) (string, error) {
		<-release
		exchangeErr <- ctx.Err()
		return "T2", nil
	}, Config{})

	leaderCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Refresh(leaderCtx)
	}()
	waitFor(t, c.InFlight)

	waiter := make(chan Result, 1)
	go func() {
		token, err := c.Refresh(context.Background())
		waiter <- Result{Token: token, Err: err}
	}()
	waitFor(t, func() bool { return c.Waiting() == 1 })

	cancel()
	close(release)
	<-done

	if err := <-exchangeErr; err != nil {
		t.Fatalf("exchange context canceled with leader: %v", err)
	}
	r := <-waiter
	if r.Err != nil || r.Token != "T2" {
		t.Fatalf("expected waiter to receive T2, got %+v", r)
	}
}

func TestRefreshWithoutExchange(t *testing.T) {
	var c *Coordinator
	if _, err := c.Refresh(context.Background()); !errors.Is(err, ErrNoExchange) {
		t.Fatalf("expected ErrNoExchange, got %v", err)
	}
}
