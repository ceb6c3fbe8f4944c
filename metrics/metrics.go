// Package metrics records per-operation latency and outcome counts for a
// provider.Provider.
package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// LatencyTracker tracks latency quantiles using DDSketch.
type LatencyTracker struct {
	mu               sync.Mutex
	ops              map[string]*opStats
	relativeAccuracy float64
}

type opStats struct {
	sketch *ddsketch.DDSketch
	hits   int64
	errors int64
}

// NewLatencyTracker creates a tracker. relativeAccuracy bounds the error of
// quantile estimates (0.01 = 1%).
func NewLatencyTracker(relativeAccuracy float64) *LatencyTracker {
	return &LatencyTracker{
		ops:              make(map[string]*opStats),
		relativeAccuracy: relativeAccuracy,
	}
}

func (lt *LatencyTracker) op(operation string) *opStats {
	s, ok := lt.ops[operation]
	if !ok {
		sketch, err := ddsketch.LogUnboundedDenseDDSketch(lt.relativeAccuracy)
		if err != nil {
			sketch, _ = ddsketch.NewDefaultDDSketch(0.01)
		}
		s = &opStats{sketch: sketch}
		lt.ops[operation] = s
	}
	return s
}

// Record records a duration for the given operation.
func (lt *LatencyTracker) Record(operation string, duration time.Duration) {
	lt.Observe(operation, duration, false, nil)
}

// Observe records a duration together with the operation's outcome. ok counts
// as a hit (Get/Has) or success (writes); a non-nil err counts as an error.
func (lt *LatencyTracker) Observe(operation string, duration time.Duration, ok bool, err error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	s := lt.op(operation)
	// milliseconds
	_ = s.sketch.Add(float64(duration.Microseconds()) / 1000.0)
	if ok {
		s.hits++
	}
	if err != nil {
		s.errors++
	}
}

// RecordFunc wraps a function and records its execution time.
func (lt *LatencyTracker) RecordFunc(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	lt.Observe(operation, time.Since(start), err == nil, err)
	return err
}

// GetQuantile returns the value in milliseconds at quantile (0..1).
func (lt *LatencyTracker) GetQuantile(operation string, quantile float64) (float64, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	s, ok := lt.ops[operation]
	if !ok {
		return 0, fmt.Errorf("no data for operation: %s", operation)
	}
	return s.sketch.GetValueAtQuantile(quantile)
}

type Stats struct {
	Operation string
	Count     int64
	Hits      int64
	Errors    int64
	Min       float64
	P50       float64
	P90       float64
	P95       float64
	P99       float64
	Max       float64
}

// GetStats returns statistics for the given operation.
func (lt *LatencyTracker) GetStats(operation string) (Stats, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	s, ok := lt.ops[operation]
	if !ok {
		return Stats{}, fmt.Errorf("no data for operation: %s", operation)
	}
	return s.stats(operation), nil
}

// GetAllStats returns statistics for all tracked operations, by name.
func (lt *LatencyTracker) GetAllStats() []Stats {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	out := make([]Stats, 0, len(lt.ops))
	for name, s := range lt.ops {
		out = append(out, s.stats(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

func (s *opStats) stats(operation string) Stats {
	count := s.sketch.GetCount()
	if count == 0 {
		return Stats{Operation: operation}
	}

	min, _ := s.sketch.GetMinValue()
	p50, _ := s.sketch.GetValueAtQuantile(0.50)
	p90, _ := s.sketch.GetValueAtQuantile(0.90)
	p95, _ := s.sketch.GetValueAtQuantile(0.95)
	p99, _ := s.sketch.GetValueAtQuantile(0.99)
	max, _ := s.sketch.GetMaxValue()

	return Stats{
		Operation: operation,
		Count:     int64(count),
		Hits:      s.hits,
		Errors:    s.errors,
		Min:       min,
		P50:       p50,
		P90:       p90,
		P95:       p95,
		P99:       p99,
		Max:       max,
	}
}

func (s Stats) String() string {
	if s.Count == 0 {
		return fmt.Sprintf("  %s: no data", s.Operation)
	}
	return fmt.Sprintf("  %s (n=%d ok=%d err=%d): min=%.2fms p50=%.2fms p90=%.2fms p95=%.2fms p99=%.2fms max=%.2fms",
		s.Operation, s.Count, s.Hits, s.Errors, s.Min, s.P50, s.P90, s.P95, s.P99, s.Max)
}
