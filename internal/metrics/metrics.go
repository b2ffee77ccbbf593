// Package metrics counts simulation work for the /metrics endpoints.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtding233/wishsim/internal/host"
)

// Collector gathers counters. The zero value is not usable; call New.
type Collector struct {
	// Simulation jobs by terminal state
	JobsCompleted atomic.Int64
	JobsCancelled atomic.Int64
	JobsFailed    atomic.Int64
	JobsPartial   atomic.Int64
	Trials        atomic.Int64
	JobLatencySum atomic.Int64 // nanoseconds
	JobLatencyMax atomic.Int64

	CacheHits   atomic.Int64
	CacheMisses atomic.Int64

	WSConnectionsActive atomic.Int64
	WSMessagesOut       atomic.Int64
	WSErrors            atomic.Int64

	RulesReloads atomic.Int64
	CronRuns     atomic.Int64

	StartTime time.Time
	mu        sync.RWMutex
	lastJob   time.Time
}

func New() *Collector {
	return &Collector{StartTime: time.Now()}
}

// RecordJob implements host.Recorder.
func (c *Collector) RecordJob(j *host.Job) {
	switch j.State() {
	case host.StateCompleted:
		c.JobsCompleted.Add(1)
	case host.StateCancelled:
		c.JobsCancelled.Add(1)
	case host.StateFailed:
		c.JobsFailed.Add(1)
	}
	if res, _ := j.Result(); res != nil {
		c.Trials.Add(int64(res.CompletedIterations))
		if res.Partial {
			c.JobsPartial.Add(1)
		}
	}

	d := int64(j.Duration())
	c.JobLatencySum.Add(d)
	for {
		cur := c.JobLatencyMax.Load()
		if d <= cur || c.JobLatencyMax.CompareAndSwap(cur, d) {
			break
		}
	}

	c.mu.Lock()
	c.lastJob = time.Now()
	c.mu.Unlock()
}

var _ host.Recorder = (*Collector)(nil)

func (c *Collector) RecordCache(hit bool) {
	if hit {
		c.CacheHits.Add(1)
	} else {
		c.CacheMisses.Add(1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) { c.WSConnectionsActive.Add(delta) }

func (c *Collector) RecordWSMessage() { c.WSMessagesOut.Add(1) }

func (c *Collector) RecordWSError() { c.WSErrors.Add(1) }

func (c *Collector) RecordReload() { c.RulesReloads.Add(1) }

func (c *Collector) RecordCronRun() { c.CronRuns.Add(1) }

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]any {
	c.mu.RLock()
	last := c.lastJob
	c.mu.RUnlock()

	done := c.JobsCompleted.Load() + c.JobsCancelled.Load() + c.JobsFailed.Load()
	var avg float64
	if done > 0 {
		avg = float64(c.JobLatencySum.Load()) / float64(done) / 1e6 // ms
	}
	lastJob := ""
	if !last.IsZero() {
		lastJob = last.Format(time.RFC3339)
	}

	return map[string]any{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"jobs": map[string]any{
			"completed":      c.JobsCompleted.Load(),
			"cancelled":      c.JobsCancelled.Load(),
			"failed":         c.JobsFailed.Load(),
			"partial":        c.JobsPartial.Load(),
			"trials":         c.Trials.Load(),
			"avg_latency_ms": avg,
			"max_latency_ms": float64(c.JobLatencyMax.Load()) / 1e6,
			"last_finished":  lastJob,
		},

		"cache": map[string]any{
			"hits":   c.CacheHits.Load(),
			"misses": c.CacheMisses.Load(),
		},

		"websocket": map[string]any{
			"active_connections": c.WSConnectionsActive.Load(),
			"messages_out":       c.WSMessagesOut.Load(),
			"errors":             c.WSErrors.Load(),
		},

		"rules_reloads": c.RulesReloads.Load(),
		"cron_runs":     c.CronRuns.Load(),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		_ = json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		fmt.Fprintf(w, "# HELP wishsim_jobs_total Finished simulation jobs\n")
		fmt.Fprintf(w, "# TYPE wishsim_jobs_total counter\n")
		fmt.Fprintf(w, "wishsim_jobs_total{state=\"completed\"} %d\n", c.JobsCompleted.Load())
		fmt.Fprintf(w, "wishsim_jobs_total{state=\"cancelled\"} %d\n", c.JobsCancelled.Load())
		fmt.Fprintf(w, "wishsim_jobs_total{state=\"failed\"} %d\n\n", c.JobsFailed.Load())

		fmt.Fprintf(w, "# HELP wishsim_trials_total Completed Monte Carlo trials\n")
		fmt.Fprintf(w, "# TYPE wishsim_trials_total counter\n")
		fmt.Fprintf(w, "wishsim_trials_total %d\n\n", c.Trials.Load())

		fmt.Fprintf(w, "# HELP wishsim_job_latency_max_ms Slowest job\n")
		fmt.Fprintf(w, "# TYPE wishsim_job_latency_max_ms gauge\n")
		fmt.Fprintf(w, "wishsim_job_latency_max_ms %.2f\n\n", float64(c.JobLatencyMax.Load())/1e6)

		fmt.Fprintf(w, "# HELP wishsim_cache_requests_total Result cache lookups\n")
		fmt.Fprintf(w, "# TYPE wishsim_cache_requests_total counter\n")
		fmt.Fprintf(w, "wishsim_cache_requests_total{result=\"hit\"} %d\n", c.CacheHits.Load())
		fmt.Fprintf(w, "wishsim_cache_requests_total{result=\"miss\"} %d\n\n", c.CacheMisses.Load())

		fmt.Fprintf(w, "# HELP wishsim_ws_connections Active progress streams\n")
		fmt.Fprintf(w, "# TYPE wishsim_ws_connections gauge\n")
		fmt.Fprintf(w, "wishsim_ws_connections %d\n", c.WSConnectionsActive.Load())
	}
}
