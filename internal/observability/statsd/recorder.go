package statsd

import (
	"sync"
	"time"
)

// Recorder is an in-memory Sink that keeps every counter increment and timing. It is
// used by tests and by the CLI, which has nowhere to ship metrics.
type Recorder struct {
	mu      sync.Mutex
	counts  map[string]int64
	timings map[string][]time.Duration
}

var _ Sink = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{counts: make(map[string]int64), timings: make(map[string][]time.Duration)}
}

func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[recorderKey(name, tags)] += value
}

func (r *Recorder) Gauge(string, float64, map[string]string) {}

func (r *Recorder) Timing(name string, value time.Duration, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalizeMetricName(name)
	r.timings[key] = append(r.timings[key], value)
}

// Timings returns every recorded duration for name, in order.
func (r *Recorder) Timings(name string) []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.timings[normalizeMetricName(name)]
	out := make([]time.Duration, len(src))
	copy(out, src)
	return out
}

// Counter returns the accumulated value for name with exactly the given tags.
func (r *Recorder) Counter(name string, tags map[string]string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[recorderKey(name, tags)]
}

func recorderKey(name string, tags map[string]string) string {
	return normalizeMetricName(name) + formatTags(nil, tags)
}
