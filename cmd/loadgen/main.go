// Package main implements loadgen, which fills a running jukebox with random
// songs and measures search latency against it.
//
// Each run seeds the random generator, adds --songs songs, plays --plays of
// them at random, then issues --queries random searches (each constraining at
// least one field) and prints the latency distribution. Requests are spread
// over --concurrency workers and optionally paced to --rate requests per
// second. After the last run the server's visit count, shards and cache
// statistics are printed.
//
// Example usage:
//
//	./loadgen --addr http://127.0.0.1:8080 --songs 10000 --queries 1000 --seeds 42,123
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dreamware/jukebox/internal/api"
	"github.com/dreamware/jukebox/internal/logging"
	"github.com/dreamware/jukebox/internal/song"
)

type config struct {
	addr        string
	songs       int
	plays       int
	queries     int
	concurrency int
	rate        float64
	seeds       []int
	verbosity   int
}

func main() {
	cfg := config{}
	pflag.StringVar(&cfg.addr, "addr", "http://127.0.0.1:8080", "Base URL of the jukebox server.")
	pflag.IntVar(&cfg.songs, "songs", 1000, "Songs to add per run.")
	pflag.IntVar(&cfg.plays, "plays", 100, "Plays of randomly chosen added songs per run.")
	pflag.IntVar(&cfg.queries, "queries", 1000, "Searches to issue per run.")
	pflag.IntVar(&cfg.concurrency, "concurrency", 10, "Maximum requests in flight.")
	pflag.Float64Var(&cfg.rate, "rate", 0, "Requests per second across all workers; 0 means unlimited.")
	pflag.IntSliceVar(&cfg.seeds, "seeds", []int{42, 123, 456, 789, 101112}, "Random seeds, one run each.")
	pflag.IntVarP(&cfg.verbosity, "v", "v", logging.DEFAULT, "Number for the log level verbosity.")
	pflag.Parse()

	logger, err := logging.NewLogger(cfg.verbosity, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(cfg.addr)
	if _, err := client.Health(ctx); err != nil {
		logging.Fatal(logger, err, "jukebox not reachable", "addr", cfg.addr)
	}

	if err := run(ctx, cfg, client, logger, os.Stdout); err != nil {
		logging.Fatal(logger, err, "load run failed")
	}
}

// run performs one add, play and search run per seed and prints a summary of
// each, followed by the server's own statistics.
func run(ctx context.Context, cfg config, client *api.Client, logger logr.Logger, out io.Writer) error {
	limit := rate.Inf
	if cfg.rate > 0 {
		limit = rate.Limit(cfg.rate)
	}
	limiter := rate.NewLimiter(limit, max(1, cfg.concurrency))

	var all []time.Duration
	for i, seed := range cfg.seeds {
		gen := newGenerator(uint64(seed))

		reqs := make([]song.NewSongRequest, cfg.songs)
		for j := range reqs {
			reqs[j] = gen.song()
		}
		added, err := addSongs(ctx, client, reqs, limiter, cfg.concurrency, logger)
		if err != nil {
			return err
		}

		var picks []uint64
		if len(added) > 0 {
			picks = make([]uint64, cfg.plays)
			for j := range picks {
				picks[j] = added[gen.rng.IntN(len(added))]
			}
		}
		played, err := playSongs(ctx, client, picks, limiter, cfg.concurrency, logger)
		if err != nil {
			return err
		}

		queries := make([]song.Query, cfg.queries)
		for j := range queries {
			queries[j] = gen.query()
		}
		latencies, failed, err := measureQueries(ctx, client, queries, limiter, cfg.concurrency, logger)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\nRun %d with random seed %d\n", i+1, seed)
		fmt.Fprintf(out, "Songs added: %d/%d\n", len(added), len(reqs))
		fmt.Fprintf(out, "Songs played: %d/%d\n", played, len(picks))
		summarize(latencies, failed).print(out)
		all = append(all, latencies...)
	}

	if len(cfg.seeds) > 1 {
		fmt.Fprintf(out, "\nOverall (%d runs)\n", len(cfg.seeds))
		summarize(all, 0).print(out)
	}
	return report(ctx, client, out)
}

// report prints the server-side view: visits, shard sizes and cache hit rate.
func report(ctx context.Context, client *api.Client, out io.Writer) error {
	visits, err := client.VisitCount(ctx)
	if err != nil {
		return fmt.Errorf("reading visit count: %w", err)
	}
	shards, err := client.Shards(ctx)
	if err != nil {
		return fmt.Errorf("reading shards: %w", err)
	}
	stats, err := client.CacheStats(ctx)
	if err != nil {
		return fmt.Errorf("reading cache stats: %w", err)
	}

	fmt.Fprintf(out, "\nServer\n")
	fmt.Fprintf(out, "Visits: %d\n", visits)
	fmt.Fprintf(out, "Shards: %d\n", len(shards))
	for _, sh := range shards {
		fmt.Fprintf(out, "  %s: %d songs\n", sh.Genre, sh.Songs)
	}
	fmt.Fprintf(out, "Cache: %d hits, %d misses, %d entries\n", stats.Hits, stats.Misses, stats.Entries)
	return nil
}

// addSongs posts every request and returns the ids of the songs created, in
// ascending order.
// Individual failures are logged; only cancellation aborts the batch.
func addSongs(ctx context.Context, client *api.Client, reqs []song.NewSongRequest, limiter *rate.Limiter, concurrency int, logger logr.Logger) ([]uint64, error) {
	var (
		mu  sync.Mutex
		ids = make([]uint64, 0, len(reqs))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, concurrency))

	for _, req := range reqs {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			rec, err := client.AddSong(ctx, req)
			if err != nil {
				logger.V(logging.DEBUG).Info("add failed", "title", req.Title, "err", err.Error())
				return nil
			}
			mu.Lock()
			ids = append(ids, rec.ID)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	slices.Sort(ids)
	return ids, err
}

// playSongs plays every id once and returns how many plays succeeded.
func playSongs(ctx context.Context, client *api.Client, ids []uint64, limiter *rate.Limiter, concurrency int, logger logr.Logger) (int, error) {
	var played atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, concurrency))

	for _, id := range ids {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			if _, err := client.Play(ctx, id); err != nil {
				logger.V(logging.DEBUG).Info("play failed", "id", id, "notFound", api.IsNotFound(err), "err", err.Error())
				return nil
			}
			played.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(played.Load()), err
}

// measureQueries issues every query and returns the latency of each
// successful one together with the number that failed.
func measureQueries(ctx context.Context, client *api.Client, queries []song.Query, limiter *rate.Limiter, concurrency int, logger logr.Logger) ([]time.Duration, int, error) {
	var (
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, len(queries))
		failed    int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, concurrency))

	for _, q := range queries {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			start := time.Now()
			_, err := client.Search(ctx, q)
			elapsed := time.Since(start)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.V(logging.DEBUG).Info("query failed", "query", q.Key(), "err", err.Error())
				failed++
				return nil
			}
			latencies = append(latencies, elapsed)
			return nil
		})
	}
	err := g.Wait()
	return latencies, failed, err
}

type summary struct {
	Succeeded int
	Failed    int
	Mean      time.Duration
	Median    time.Duration
	P99       time.Duration
	Total     time.Duration
}

func summarize(latencies []time.Duration, failed int) summary {
	s := summary{Succeeded: len(latencies), Failed: failed}
	if len(latencies) == 0 {
		return s
	}

	sorted := slices.Clone(latencies)
	slices.Sort(sorted)
	for _, d := range sorted {
		s.Total += d
	}
	s.Mean = s.Total / time.Duration(len(sorted))
	n := len(sorted)
	if n%2 == 1 {
		s.Median = sorted[n/2]
	} else {
		s.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	s.P99 = sorted[min(n-1, n*99/100)]
	return s
}

func (s summary) print(out io.Writer) {
	if s.Succeeded == 0 {
		fmt.Fprintf(out, "All %d queries failed\n", s.Failed)
		return
	}
	fmt.Fprintf(out, "Average time: %.4f seconds\n", s.Mean.Seconds())
	fmt.Fprintf(out, "Median time: %.4f seconds\n", s.Median.Seconds())
	fmt.Fprintf(out, "P99 time: %.4f seconds\n", s.P99.Seconds())
	fmt.Fprintf(out, "Total time: %.4f seconds\n", s.Total.Seconds())
	fmt.Fprintf(out, "Successful queries: %d/%d\n", s.Succeeded, s.Succeeded+s.Failed)
}
