// Command taskdesk-loadtest drives concurrent portal requests against the fake
// registry backend while access tokens are revoked underneath them, and
// reports latency percentiles and how many refresh exchanges were needed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/courtregistry/taskdesk"
	"github.com/courtregistry/taskdesk/internal/registrytest"
)

func main() {
	var (
		requests    = flag.Int("requests", 20000, "total requests to issue")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		expireEvery = flag.Duration("expire-every", 250*time.Millisecond, "how often the backend revokes every access token")
		redisAddr   = flag.String("redis-addr", "", "redis address for the session store; if empty, REDIS_ADDR env or miniredis is used")
		verbose     = flag.Bool("verbose", false, "log client debug output")
	)
	flag.Parse()

	if *requests <= 0 || *concurrency <= 0 || *expireEvery <= 0 {
		fmt.Fprintln(os.Stderr, "requests, concurrency, and expire-every must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	srv, err := registrytest.Start()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start backend: %v\n", err)
		os.Exit(1)
	}
	defer srv.Close()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	cfg := taskdesk.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Session.Name = fmt.Sprintf("loadtest-%d", time.Now().UnixNano())
	client, err := taskdesk.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLatencyHistograms(true).
		WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := signIn(ctx, srv, client); err != nil {
		fmt.Fprintf(os.Stderr, "sign in: %v\n", err)
		os.Exit(1)
	}

	stop := make(chan struct{})
	var revocations atomic.Int64
	go func() {
		ticker := time.NewTicker(*expireEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.ExpireAccessTokens()
				revocations.Add(1)
			case <-stop:
				return
			}
		}
	}()

	stats := runPhase(ctx, client, *requests, *concurrency)
	close(stop)

	snap := client.MetricsSnapshot()
	fmt.Println("---- results ----")
	printStats("my-tasks", stats)
	fmt.Printf("revocations=%d refresh_exchanges=%d replays=%d unauthorized=%d session_ended=%d\n",
		revocations.Load(),
		client.RefreshExchanges(),
		snap.Counters[taskdesk.MetricReplay],
		snap.Counters[taskdesk.MetricUnauthorized],
		snap.Counters[taskdesk.MetricSessionEnded],
	)
	fmt.Printf("refresh latency buckets (<=10ms ... +Inf): %v\n", snap.Histograms[taskdesk.MetricRefreshLatency])
}

func signIn(ctx context.Context, srv *registrytest.Server, client *taskdesk.Client) error {
	if err := srv.GrantRefreshCookie(client.HTTPClient().Jar, registrytest.ClerkID); err != nil {
		return err
	}
	_, err := client.RestoreSession(ctx)
	return err
}

func runPhase(ctx context.Context, client *taskdesk.Client, requests, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, requests)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= requests {
					return
				}
				t0 := time.Now()
				_, err := client.MyTasks(ctx, taskdesk.TaskFilter{})
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
