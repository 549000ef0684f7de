// Command bankid-loadtest measures begin and collect throughput of the
// engine against Redis with the simulator as identity provider.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/MrEthical07/goBankID/provider/simulator"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		orders      = flag.Int("orders", 20000, "number of orders to begin")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "collect operations")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "bidload", "order key prefix")
	)
	flag.Parse()

	if *orders <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "orders, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, err := newEngine(client, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine init failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	refs, beginStats := runBeginPhase(ctx, engine, *orders, *concurrency)
	if len(refs) == 0 {
		fmt.Fprintln(os.Stderr, "no orders could be started")
		os.Exit(1)
	}
	collectStats := runCollectPhase(ctx, engine, refs, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("begin", beginStats)
	printStats("collect", collectStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("provider errors=%d superseded=%d\n",
		snap.Counters[goBankID.MetricCollectProviderError],
		snap.Counters[goBankID.MetricOrderSuperseded],
	)
}

func newEngine(client redis.UniversalClient, prefix string) (*goBankID.Engine, error) {
	cfg := goBankID.DefaultConfig()
	cfg.Order.RedisPrefix = prefix
	cfg.Order.RenderQRImage = false
	// Orders must stay pending for the whole run.
	cfg.Order.ValidityWindow = time.Hour
	cfg.Order.RecordTTL = 2 * time.Hour
	cfg.Session.RedisPrefix = prefix + "s"
	cfg.Security.EnableBeginThrottle = false
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("loadtest-secret-loadtest-secret-0")

	return goBankID.New().
		WithConfig(cfg).
		WithRedis(client).
		WithProvider(simulator.New(simulator.WithScript(
			simulator.Step{Status: goBankID.ProviderPending, HintCode: "outstandingTransaction"},
		))).
		WithUserDirectory(goBankID.NewMemoryStore()).
		WithLogger(slog.New(slog.DiscardHandler)).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
}

func runBeginPhase(ctx context.Context, engine *goBankID.Engine, orders, concurrency int) ([]string, phaseStats) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, orders)
		refs      = make([]string, 0, orders)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= orders {
					return
				}
				ip := fmt.Sprintf("10.%d.%d.%d", (i>>16)&0xFF, (i>>8)&0xFF, i&0xFF)
				t0 := time.Now()
				res, err := engine.BeginIdentification(ctx, goBankID.BeginRequest{ClientIP: ip})
				d := time.Since(t0)

				mu.Lock()
				latencies = append(latencies, d)
				if err == nil {
					refs = append(refs, res.OrderRef)
				}
				mu.Unlock()
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return refs, computeStats(total, latencies, failures)
}

func runCollectPhase(ctx context.Context, engine *goBankID.Engine, refs []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				ref := refs[r.Intn(len(refs))]
				t0 := time.Now()
				_, err := engine.Collect(ctx, ref)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
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
