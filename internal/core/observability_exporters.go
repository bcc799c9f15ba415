package core

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// ExpvarMetricsRecorder publishes aggregate dispatch and task metrics via
// expvar for deployments that prefer process-local metrics. Durations are
// kept as millisecond totals per action type.
type ExpvarMetricsRecorder struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	outcomes  map[string]map[string]int64
	pending   map[string]int
}

// ExpvarMetricsSnapshot captures a read-only view of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Outcomes    map[string]map[string]int64 `json:"outcomes_total"`
	Pending     map[string]int              `json:"pending"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder constructs an expvar-backed recorder and publishes it
// under the supplied name. When name is empty, a unique identifier is generated.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("examist_store_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{
		name:      name,
		durations: make(map[string]float64),
		outcomes:  make(map[string]map[string]int64),
		pending:   make(map[string]int),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Snapshot returns an immutable copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	durations := make(map[string]float64, len(r.durations))
	for typ, total := range r.durations {
		durations[typ] = total
	}
	outcomes := make(map[string]map[string]int64, len(r.outcomes))
	for typ, counts := range r.outcomes {
		cpy := make(map[string]int64, len(counts))
		for outcome, n := range counts {
			cpy[outcome] = n
		}
		outcomes[typ] = cpy
	}
	pending := make(map[string]int, len(r.pending))
	for typ, n := range r.pending {
		pending[typ] = n
	}
	return ExpvarMetricsSnapshot{
		DurationsMS: durations,
		Outcomes:    outcomes,
		Pending:     pending,
		RecordedAt:  time.Now().UTC(),
	}
}

// ObserveDispatch implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) ObserveDispatch(actionType, outcome string) {
	if actionType == "" {
		return
	}
	r.mu.Lock()
	if _, ok := r.outcomes[actionType]; !ok {
		r.outcomes[actionType] = make(map[string]int64, 4)
	}
	r.outcomes[actionType][outcome]++
	r.mu.Unlock()
}

// ObserveTask implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) ObserveTask(actionType string, _ bool, duration time.Duration) {
	if actionType == "" {
		return
	}
	r.mu.Lock()
	r.durations[actionType] += float64(duration) / float64(time.Millisecond)
	r.mu.Unlock()
}

// SetPending implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) SetPending(actionType string, inFlight int) {
	r.mu.Lock()
	if inFlight == 0 {
		delete(r.pending, actionType)
	} else {
		r.pending[actionType] = inFlight
	}
	r.mu.Unlock()
}
