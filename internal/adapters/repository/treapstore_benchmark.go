package repository

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/meritum/agora/internal/domain/merit"
)

// BenchmarkResult holds the results of a benchmark run
type BenchmarkResult struct {
	Operation     string
	TotalOps      int64
	TotalTime     time.Duration
	AvgLatency    time.Duration
	P50Latency    time.Duration
	P90Latency    time.Duration
	P95Latency    time.Duration
	P99Latency    time.Duration
	Throughput    float64 // ops/sec
	MemoryUsage   uint64  // bytes
	SnapshotCount int64
	ErrorCount    int64
	SuccessRate   float64
}

// APIPerformance tracks performance metrics for each store API
type APIPerformance struct {
	Apply    *BenchmarkResult
	Standing *BenchmarkResult
	TopN     *BenchmarkResult
	Count    *BenchmarkResult
}

// StressTestConfig holds configuration for board stress testing
type StressTestConfig struct {
	TotalMembers      int
	ConcurrentWorkers int
	TestDuration      time.Duration
	SnapshotInterval  time.Duration
	TopCacheSize      int

	// API call distribution (percentages)
	ApplyRatio    float64
	StandingRatio float64
	TopNRatio     float64
	CountRatio    float64

	// TopN query size distribution
	TopNSizes       []int
	TopNSizeWeights []float64
}

// DefaultStressTestConfig returns a configuration sized for a large
// deliberative body with read-heavy leaderboard traffic.
func DefaultStressTestConfig() *StressTestConfig {
	return &StressTestConfig{
		TotalMembers:      1_000_000,
		ConcurrentWorkers: 500,
		TestDuration:      5 * time.Minute,
		SnapshotInterval:  1 * time.Second,
		TopCacheSize:      1000,

		// Merit recomputes are batch-driven, so reads dominate.
		ApplyRatio:    0.25,
		StandingRatio: 0.40,
		TopNRatio:     0.30,
		CountRatio:    0.05,

		TopNSizes:       []int{10, 50, 100, 500, 1000},
		TopNSizeWeights: []float64{0.45, 0.25, 0.15, 0.10, 0.05},
	}
}

// BoardStressTest exercises every store API concurrently and reports
// per-API latency distributions.
func BoardStressTest(b *testing.B, config *StressTestConfig) {
	if config == nil {
		config = DefaultStressTestConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	store := NewTreapStore(ctx,
		WithSnapshotInterval(config.SnapshotInterval),
		WithTopCacheSize(config.TopCacheSize),
	)
	defer func() {
		if err := store.Close(); err != nil {
			b.Errorf("failed to close store: %v", err)
		}
	}()

	b.Logf("Pre-populating store with %d members...", config.TotalMembers)
	start := time.Now()
	populateStore(ctx, store, config.TotalMembers)
	b.Logf("Pre-population completed in %v", time.Since(start))

	b.Log("Running board stress test with all APIs under pressure...")
	apiPerformance := runBoardStressTest(ctx, store, config)

	generateStressReport(b, apiPerformance, config)
}

// meritUpdate builds an Apply payload with a cumulative score in the
// valid merit range and a voting weight derived the same way the merit
// tracker derives it.
func meritUpdate(memberID string, cumulative float64) merit.Update {
	weight := math.Log(cumulative + 1)
	if weight < 1 {
		weight = 1
	}
	return merit.Update{
		MemberID:        memberID,
		CumulativeScore: cumulative,
		VotingWeight:    weight,
	}
}

// populateStore seeds the board with a bell-ish merit distribution.
func populateStore(ctx context.Context, store *TreapStore, count int) {
	const batchSize = 10000
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, runtime.NumCPU()*2)

	for i := 0; i < count; i += batchSize {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(startIdx int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			endIdx := startIdx + batchSize
			if endIdx > count {
				endIdx = count
			}

			r := rand.New(rand.NewSource(int64(startIdx)))

			for j := startIdx; j < endIdx; j++ {
				memberID := fmt.Sprintf("member_%d", j)

				// Average of three uniforms concentrates scores
				// around the middle of the 0..10 range.
				score := (r.Float64() + r.Float64() + r.Float64()) / 3.0 * 10.0
				_ = store.Apply(ctx, meritUpdate(memberID, score))
			}
		}(i)
	}

	wg.Wait()
}

// runBoardStressTest runs all APIs simultaneously under pressure.
func runBoardStressTest(ctx context.Context, store *TreapStore, config *StressTestConfig) *APIPerformance {
	var wg sync.WaitGroup

	applyMetrics := &MetricsCollector{}
	standingMetrics := &MetricsCollector{}
	topNMetrics := &MetricsCollector{}
	countMetrics := &MetricsCollector{}

	testStart := time.Now()

	for i := 0; i < config.ConcurrentWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(workerID) + time.Now().UnixNano()))

			for ctx.Err() == nil {
				apiChoice := r.Float64()

				switch {
				case apiChoice < config.ApplyRatio:
					memberID := fmt.Sprintf("member_%d", r.Intn(config.TotalMembers))
					score := r.Float64() * 10.0

					start := time.Now()
					err := store.Apply(ctx, meritUpdate(memberID, score))
					applyMetrics.Record(time.Since(start), err == nil)

				case apiChoice < config.ApplyRatio+config.StandingRatio:
					memberID := fmt.Sprintf("member_%d", r.Intn(config.TotalMembers))

					start := time.Now()
					_, err := store.Standing(ctx, memberID)
					standingMetrics.Record(time.Since(start), err == nil)

				case apiChoice < config.ApplyRatio+config.StandingRatio+config.TopNRatio:
					randVal := r.Float64()
					cumulativeWeight := 0.0
					var selectedSize int

					for i, weight := range config.TopNSizeWeights {
						cumulativeWeight += weight
						if randVal <= cumulativeWeight {
							selectedSize = config.TopNSizes[i]
							break
						}
					}

					start := time.Now()
					_, err := store.TopN(ctx, selectedSize)
					topNMetrics.Record(time.Since(start), err == nil)

				default:
					start := time.Now()
					_ = store.Count(ctx)
					countMetrics.Record(time.Since(start), true)
				}

				time.Sleep(time.Duration(r.Intn(100)) * time.Microsecond)
			}
		}(i)
	}

	time.Sleep(config.TestDuration)
	wg.Wait()

	totalTime := time.Since(testStart)
	snapshotCount := int64(totalTime / config.SnapshotInterval)

	return &APIPerformance{
		Apply:    applyMetrics.CalculateResult("Apply", totalTime, snapshotCount),
		Standing: standingMetrics.CalculateResult("Standing", totalTime, snapshotCount),
		TopN:     topNMetrics.CalculateResult("TopN", totalTime, snapshotCount),
		Count:    countMetrics.CalculateResult("Count", totalTime, snapshotCount),
	}
}

// MetricsCollector collects latency and success metrics for an API
type MetricsCollector struct {
	latencies  []time.Duration
	successOps int64
	totalOps   int64
	mu         sync.Mutex
}

// Record records a single operation result
func (mc *MetricsCollector) Record(latency time.Duration, success bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.latencies = append(mc.latencies, latency)
	mc.totalOps++
	if success {
		mc.successOps++
	}
}

// CalculateResult calculates benchmark results from collected metrics
func (mc *MetricsCollector) CalculateResult(operation string, totalTime time.Duration, snapshotCount int64) *BenchmarkResult {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.latencies) == 0 {
		return &BenchmarkResult{
			Operation:     operation,
			TotalOps:      mc.totalOps,
			TotalTime:     totalTime,
			SnapshotCount: snapshotCount,
			ErrorCount:    mc.totalOps - mc.successOps,
			SuccessRate:   0.0,
		}
	}

	sorted := make([]time.Duration, len(mc.latencies))
	copy(sorted, mc.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	p50Idx := int(float64(len(sorted)) * 0.50)
	p90Idx := int(float64(len(sorted)) * 0.90)
	p95Idx := int(float64(len(sorted)) * 0.95)
	p99Idx := int(float64(len(sorted)) * 0.99)

	var total time.Duration
	for _, lat := range mc.latencies {
		total += lat
	}
	avgLatency := total / time.Duration(len(mc.latencies))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	successRate := float64(mc.successOps) / float64(mc.totalOps) * 100.0

	return &BenchmarkResult{
		Operation:     operation,
		TotalOps:      mc.totalOps,
		TotalTime:     totalTime,
		AvgLatency:    avgLatency,
		P50Latency:    sorted[p50Idx],
		P90Latency:    sorted[p90Idx],
		P95Latency:    sorted[p95Idx],
		P99Latency:    sorted[p99Idx],
		Throughput:    float64(mc.totalOps) / totalTime.Seconds(),
		MemoryUsage:   m.Alloc,
		SnapshotCount: snapshotCount,
		ErrorCount:    mc.totalOps - mc.successOps,
		SuccessRate:   successRate,
	}
}

// generateStressReport prints a per-API latency and throughput summary.
func generateStressReport(b *testing.B, apiPerf *APIPerformance, config *StressTestConfig) {
	b.Log("\n" + strings.Repeat("=", 100))
	b.Log("BOARD STRESS TEST REPORT")
	b.Log(strings.Repeat("=", 100))
	b.Logf("Configuration:")
	b.Logf("  Total Members: %d", config.TotalMembers)
	b.Logf("  Concurrent Workers: %d", config.ConcurrentWorkers)
	b.Logf("  Snapshot Interval: %v", config.SnapshotInterval)
	b.Logf("  Top Cache Size: %d", config.TopCacheSize)
	b.Logf("  Test Duration: %v", config.TestDuration)
	b.Logf("  API Distribution: Apply(%.1f%%) Standing(%.1f%%) TopN(%.1f%%) Count(%.1f%%)",
		config.ApplyRatio*100, config.StandingRatio*100, config.TopNRatio*100, config.CountRatio*100)
	b.Logf("")

	b.Logf("API PERFORMANCE SUMMARY:")
	b.Logf("%-15s %12s %12s %12s %12s %12s %12s %10s %10s", "API", "Total Ops", "Throughput", "Avg Latency", "P90 Latency", "P95 Latency", "P99 Latency", "Success%", "Errors")
	b.Logf("%-15s %12s %12s %12s %12s %12s %12s %10s %10s", "", "", "(ops/sec)", "(μs)", "(μs)", "(μs)", "(μs)", "", "")
	b.Log(strings.Repeat("-", 100))

	apis := []struct {
		name   string
		result *BenchmarkResult
	}{
		{"Apply", apiPerf.Apply},
		{"Standing", apiPerf.Standing},
		{"TopN", apiPerf.TopN},
		{"Count", apiPerf.Count},
	}

	for _, api := range apis {
		if api.result.TotalOps > 0 {
			b.Logf("%-15s %12d %12.0f %12d %12d %12d %12d %10.1f %10d",
				api.name,
				api.result.TotalOps,
				api.result.Throughput,
				api.result.AvgLatency.Microseconds(),
				api.result.P90Latency.Microseconds(),
				api.result.P95Latency.Microseconds(),
				api.result.P99Latency.Microseconds(),
				api.result.SuccessRate,
				api.result.ErrorCount,
			)
		}
	}

	b.Logf("")
	b.Logf("LATENCY CONSISTENCY:")
	for _, api := range apis {
		if api.result.TotalOps > 0 && api.result.P50Latency > 0 {
			latencySpread := float64(api.result.P99Latency) / float64(api.result.P50Latency)
			b.Logf("  %s: P99/P50 ratio = %.2fx", api.name, latencySpread)
		}
	}

	b.Logf("")
	b.Logf("RESOURCE ANALYSIS:")
	for _, api := range apis {
		if api.result.MemoryUsage > 0 {
			b.Logf("  %s Memory Usage: %s", api.name, formatBytes(api.result.MemoryUsage))
		}
	}

	b.Logf("")
	b.Logf("SNAPSHOT IMPACT: %d snapshots during test", apiPerf.Apply.SnapshotCount)
	b.Log(strings.Repeat("=", 100))
}

// formatBytes formats bytes into human-readable format
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// Benchmark functions for Go's testing framework
func BenchmarkTreapStore_1MMembers_BoardStressTest(b *testing.B) {
	BoardStressTest(b, DefaultStressTestConfig())
}

func BenchmarkTreapStore_1MMembers_WriteHeavyStress(b *testing.B) {
	config := DefaultStressTestConfig()
	config.ApplyRatio = 0.70
	config.StandingRatio = 0.20
	config.TopNRatio = 0.08
	config.CountRatio = 0.02
	BoardStressTest(b, config)
}

func BenchmarkTreapStore_1MMembers_ReadHeavyStress(b *testing.B) {
	config := DefaultStressTestConfig()
	config.ApplyRatio = 0.10
	config.StandingRatio = 0.50
	config.TopNRatio = 0.35
	config.CountRatio = 0.05
	BoardStressTest(b, config)
}
