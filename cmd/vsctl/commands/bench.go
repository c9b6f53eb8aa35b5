package commands

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

var (
	benchURL         string
	benchConcurrency int
	benchDuration    time.Duration
	benchQueries     []string
	benchTake        int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load-test a running searcher",
	Long: `Bench sends the given queries round-robin from concurrent workers to
GET /api/v1/search for the chosen collection and prints throughput, latency
percentiles and the status code histogram.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchConcurrency < 1 {
			return fmt.Errorf("concurrency must be positive")
		}
		if len(benchQueries) == 0 {
			return fmt.Errorf("at least one --query is required")
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "target %s, collection %s, %d workers for %s, %d queries\n",
			benchURL, collection, benchConcurrency, benchDuration, len(benchQueries))

		stats := runBench(cmd.Context(), benchTarget{
			baseURL:    benchURL,
			collection: collection,
			queries:    benchQueries,
			take:       benchTake,
		}, benchConcurrency, benchDuration)
		stats.report(out, benchDuration)
		if stats.total.Load() == 0 {
			return fmt.Errorf("no requests completed, is the searcher running?")
		}
		return nil
	},
}

func init() {
	benchCmd.Flags().StringVar(&benchURL, "url", "http://localhost:8080", "base URL of the search service")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", 10, "number of concurrent workers")
	benchCmd.Flags().DurationVar(&benchDuration, "duration", 30*time.Second, "test duration")
	benchCmd.Flags().StringArrayVar(&benchQueries, "query", nil, "query expression, repeatable")
	benchCmd.Flags().IntVar(&benchTake, "take", 10, "documents per response")
	rootCmd.AddCommand(benchCmd)
}

type benchTarget struct {
	baseURL    string
	collection string
	queries    []string
	take       int
}

func (t benchTarget) url(i int) string {
	params := url.Values{}
	params.Set("collection", t.collection)
	params.Set("q", t.queries[i%len(t.queries)])
	params.Set("take", fmt.Sprint(t.take))
	return t.baseURL + "/api/v1/search?" + params.Encode()
}

type benchStats struct {
	total   atomic.Int64
	success atomic.Int64
	errors  atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newBenchStats() *benchStats {
	return &benchStats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *benchStats) record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.errors.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[status]++
	s.mu.Unlock()
}

func runBench(ctx context.Context, target benchTarget, concurrency int, duration time.Duration) *benchStats {
	stats := newBenchStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.url(next), nil)
				next++
				if err != nil {
					stats.record(0, 0, err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				d := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.record(d, 0, err)
					}
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(d, resp.StatusCode, nil)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func (s *benchStats) report(w io.Writer, duration time.Duration) {
	total := s.total.Load()
	fmt.Fprintf(w, "requests %d, ok %d, errors %d", total, s.success.Load(), s.errors.Load())
	if total > 0 {
		fmt.Fprintf(w, ", %.2f req/s", float64(total)/duration.Seconds())
	}
	fmt.Fprintln(w)

	s.mu.Lock()
	latencies := append([]time.Duration(nil), s.latencies...)
	codes := make([]int, 0, len(s.codes))
	for c := range s.codes {
		codes = append(codes, c)
	}
	counts := make(map[int]int64, len(s.codes))
	for c, n := range s.codes {
		counts[c] = n
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintf(w, "latency min %s avg %s p50 %s p90 %s p99 %s max %s\n",
			latencies[0], sum/time.Duration(len(latencies)),
			percentile(latencies, 50), percentile(latencies, 90), percentile(latencies, 99),
			latencies[len(latencies)-1])
	}
	sort.Ints(codes)
	for _, c := range codes {
		fmt.Fprintf(w, "  %d: %d\n", c, counts[c])
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
