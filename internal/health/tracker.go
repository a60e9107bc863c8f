package health

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultThresholdMs is the p95 latency threshold applied when no per-key or
// per-dependency threshold is configured.
const DefaultThresholdMs = 1800

// latencyWindowSize bounds the number of retained samples per key. Oldest
// samples are evicted first — a count-bounded sliding window, not a time window.
const latencyWindowSize = 180

// unhealthyErrorRatePct marks a key unhealthy regardless of latency.
const unhealthyErrorRatePct = 20

type sample struct {
	latencies  []float64
	successes  int
	failures   int
	lastSeenAt time.Time
}

// Tracker records latency/outcome observations for external calls, keyed by
// "dependency:operation". State is process-local and never persisted.
type Tracker struct {
	mu      sync.Mutex
	samples map[string]*sample
}

// Report is a point-in-time health summary for one tracked key.
type Report struct {
	Key          string    `json:"key"`
	Dependency   string    `json:"dependency"`
	Operation    string    `json:"operation"`
	Samples      int       `json:"samples"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	ErrorRatePct float64   `json:"error_rate_pct"`
	P50Ms        float64   `json:"p50_ms"`
	P95Ms        float64   `json:"p95_ms"`
	ThresholdMs  float64   `json:"threshold_ms"`
	Healthy      bool      `json:"healthy"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

func NewTracker() *Tracker {
	return &Tracker{
		samples: make(map[string]*sample),
	}
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}

// Record appends one completed-call observation. The key is created lazily on
// first use; once the latency window is full the oldest entry is evicted.
func (t *Tracker) Record(dependency, operation string, durationMs float64, success bool) {
	key := normalize(dependency) + ":" + normalize(operation)

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.samples[key]
	if !ok {
		s = &sample{latencies: make([]float64, 0, latencyWindowSize)}
		t.samples[key] = s
	}

	s.latencies = append(s.latencies, durationMs)
	if len(s.latencies) > latencyWindowSize {
		s.latencies = s.latencies[1:]
	}

	if success {
		s.successes++
	} else {
		s.failures++
	}
	s.lastSeenAt = time.Now()
}

// Snapshot computes a report for every tracked key without mutating state.
// Thresholds are resolved by exact "dependency:operation" key first, then by
// bare dependency, then DefaultThresholdMs. Unhealthy entries sort first,
// worst p95 first within each group.
func (t *Tracker) Snapshot(thresholds map[string]float64) []Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	reports := make([]Report, 0, len(t.samples))
	for key, s := range t.samples {
		dependency, operation, _ := strings.Cut(key, ":")

		threshold := float64(DefaultThresholdMs)
		if v, ok := thresholds[key]; ok {
			threshold = v
		} else if v, ok := thresholds[dependency]; ok {
			threshold = v
		}

		total := s.successes + s.failures
		errorRate := 0.0
		if total > 0 {
			errorRate = round2(float64(s.failures) / float64(total) * 100)
		}

		p50 := round2(percentile(s.latencies, 0.5))
		p95 := round2(percentile(s.latencies, 0.95))

		reports = append(reports, Report{
			Key:          key,
			Dependency:   dependency,
			Operation:    operation,
			Samples:      len(s.latencies),
			SuccessCount: s.successes,
			FailureCount: s.failures,
			ErrorRatePct: errorRate,
			P50Ms:        p50,
			P95Ms:        p95,
			ThresholdMs:  threshold,
			Healthy:      p95 <= threshold && errorRate < unhealthyErrorRatePct,
			LastSeenAt:   s.lastSeenAt,
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].Healthy != reports[j].Healthy {
			return !reports[i].Healthy
		}
		return reports[i].P95Ms > reports[j].P95Ms
	})

	return reports
}

// percentile returns the value at clamp(floor((n-1)*p), 0, n-1) of the sorted
// window, or 0 for an empty window.
func percentile(latencies []float64, p float64) float64 {
	n := len(latencies)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, latencies)
	sort.Float64s(sorted)

	idx := int(math.Floor(float64(n-1) * p))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
