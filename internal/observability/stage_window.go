package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

// StageStats summarises the recent latencies of one call stage.
type StageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`

	// OverTarget counts samples in the window slower than the target.
	OverTarget int `json:"over_target,omitempty"`
}

// DegradedCount is the number of placeholder substitutions of one kind since
// the process started.
type DegradedCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

type StageSnapshot struct {
	GeneratedAt time.Time       `json:"generated_at"`
	WindowSize  int             `json:"window_size"`
	Stages      []StageStats    `json:"stages"`
	Degraded    []DegradedCount `json:"degraded,omitempty"`
}

// stageWindow holds the most recent latencies of every timed call stage,
// together with the p95 budget each stage is measured against.
type stageWindow struct {
	mu       sync.RWMutex
	size     int
	targets  map[string]float64
	rings    map[string]*latencyRing
	degraded map[string]int
}

type latencyRing struct {
	buf   []float64
	head  int
	count int
	last  float64
}

func (r *latencyRing) add(ms float64) {
	r.buf[r.head] = ms
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.last = ms
}

// sorted returns a sorted copy of the samples currently held.
func (r *latencyRing) sorted() []float64 {
	out := make([]float64, r.count)
	copy(out, r.buf[:r.count])
	sort.Float64s(out)
	return out
}

func newStageWindow(size int) *stageWindow {
	if size <= 0 {
		size = 256
	}
	return &stageWindow{
		size:     size,
		targets:  make(map[string]float64),
		rings:    make(map[string]*latencyRing),
		degraded: make(map[string]int),
	}
}

// SetTargets replaces the p95 budgets. Stages without a budget report none.
func (w *stageWindow) SetTargets(targets map[string]time.Duration) {
	next := make(map[string]float64, len(targets))
	for stage, d := range targets {
		if stage != "" && d > 0 {
			next[stage] = float64(d.Microseconds()) / 1000
		}
	}
	w.mu.Lock()
	w.targets = next
	w.mu.Unlock()
}

func (w *stageWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	ring, ok := w.rings[stage]
	if !ok {
		ring = &latencyRing{buf: make([]float64, w.size)}
		w.rings[stage] = ring
	}
	ring.add(ms)
}

func (w *stageWindow) ObserveDegraded(kind string) {
	if kind == "" {
		return
	}
	w.mu.Lock()
	w.degraded[kind]++
	w.mu.Unlock()
}

func (w *stageWindow) Snapshot() StageSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := StageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.size,
		Stages:      make([]StageStats, 0, len(w.rings)),
	}
	for _, stage := range sortedKeys(w.rings) {
		ring := w.rings[stage]
		if ring.count == 0 {
			continue
		}
		samples := ring.sorted()
		target := w.targets[stage]

		sum := 0.0
		over := 0
		for _, v := range samples {
			sum += v
			if target > 0 && v > target {
				over++
			}
		}
		snap.Stages = append(snap.Stages, StageStats{
			Stage:       stage,
			Samples:     len(samples),
			LastMS:      round2(ring.last),
			AvgMS:       round2(sum / float64(len(samples))),
			P50MS:       round2(quantile(samples, 0.50)),
			P95MS:       round2(quantile(samples, 0.95)),
			P99MS:       round2(quantile(samples, 0.99)),
			TargetP95MS: target,
			OverTarget:  over,
		})
	}
	for _, kind := range sortedKeys(w.degraded) {
		snap.Degraded = append(snap.Degraded, DegradedCount{Kind: kind, Count: w.degraded[kind]})
	}
	return snap
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if frac == 0 {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
