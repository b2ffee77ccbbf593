package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/sim"
)

var tracer = otel.Tracer("wishsim-host")

// Recorder is told about every job that reaches a terminal state.
type Recorder interface {
	RecordJob(j *Job)
}

// NoopRecorder discards job notifications.
type NoopRecorder struct{}

func (NoopRecorder) RecordJob(*Job) {}

// Recorders fans a notification out in order.
type Recorders []Recorder

func (rs Recorders) RecordJob(j *Job) {
	for _, r := range rs {
		r.RecordJob(j)
	}
}

// Config configures a Host.
type Config struct {
	// Workers shards each run; 0 means GOMAXPROCS.
	Workers int
	// Timeout is the default wall-clock cap; 0 means none.
	Timeout time.Duration
	// MaxJobs bounds how many finished jobs stay retrievable by ID.
	MaxJobs int
	// MaxIterations is the largest run accepted; 0 means sim.DefaultMaxIterations.
	MaxIterations int
	// MaxCells caps targets × iterations of one run; 0 means sim.DefaultMaxCells.
	MaxCells int
	// Rules returns the banner table at submit time, so reloads apply to
	// the next job only. Nil means gacha.DefaultTable.
	Rules    func() gacha.Table
	Recorder Recorder
	Logger   *slog.Logger
}

// Options are per-submission settings.
type Options struct {
	// Timeout overrides Config.Timeout when positive.
	Timeout time.Duration
}

// Host runs simulations off the caller's goroutine. Each session has at most
// one job in flight; submitting again supersedes the previous one.
type Host struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	closed   bool
	sessions map[string]*Job
	jobs     map[string]*Job
	order    []string // job IDs, oldest first
	wg       sync.WaitGroup
}

func New(cfg Config) *Host {
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 256
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = sim.DefaultMaxIterations
	}
	if cfg.MaxCells <= 0 {
		cfg.MaxCells = sim.DefaultMaxCells
	}
	if cfg.Recorder == nil {
		cfg.Recorder = NoopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Host{
		cfg:      cfg,
		log:      cfg.Logger,
		sessions: make(map[string]*Job),
		jobs:     make(map[string]*Job),
	}
}

// MaxIterations is the largest Config.Iterations a job may ask for.
func (h *Host) MaxIterations() int { return h.cfg.MaxIterations }

// MaxCells is the largest targets × iterations product a job may ask for.
func (h *Host) MaxCells() int { return h.cfg.MaxCells }

// Submit starts a job for in and returns immediately. Any job still running
// in the same session ends Cancelled with ErrSuperseded. ctx only parents the
// trace span; the job outlives it.
func (h *Host) Submit(ctx context.Context, session string, in *sim.Input, opts Options) (*Job, error) {
	timeout := h.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	jobCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	job := newJob(uuid.NewString(), session, in, cancel)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel(ErrClosed)
		return nil, ErrClosed
	}
	if prev, ok := h.sessions[session]; ok && !prev.State().Terminal() {
		prev.cancel(ErrSuperseded)
		h.log.Info("simulation superseded", "job_id", prev.ID, "session", session, "by", job.ID)
	}
	h.sessions[session] = job
	h.jobs[job.ID] = job
	h.order = append(h.order, job.ID)
	h.prune()
	h.wg.Add(1)
	h.mu.Unlock()

	var table gacha.Table
	if h.cfg.Rules != nil {
		table = h.cfg.Rules()
	}
	go h.run(jobCtx, job, table, timeout)
	return job, nil
}

func (h *Host) run(ctx context.Context, job *Job, table gacha.Table, timeout time.Duration) {
	defer h.wg.Done()
	defer job.cancel(nil)

	ctx, span := tracer.Start(ctx, "simulation.run", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("session", job.Session),
	))
	defer span.End()

	runCtx := ctx
	if timeout > 0 {
		var stop context.CancelFunc
		runCtx, stop = context.WithTimeoutCause(ctx, timeout, errWallClock)
		defer stop()
	}

	var (
		res   *sim.Result
		err   error
		state State
	)
	defer func() {
		if r := recover(); r != nil {
			state, res, err = StateFailed, nil, fmt.Errorf("%w: %v", sim.ErrTrialPanic, r)
		}
		span.SetAttributes(attribute.String("job.state", state.String()))
		if err != nil && state == StateFailed {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		job.finish(state, res, err)
		h.log.Info("simulation finished",
			"job_id", job.ID,
			"session", job.Session,
			"state", state.String(),
			"duration_ms", job.Duration().Milliseconds(),
			"error", err,
		)
		h.cfg.Recorder.RecordJob(job)
	}()

	job.state.Store(int32(StateRunning))
	if job.Input != nil {
		span.SetAttributes(
			attribute.Int("iterations", job.Input.Config.Iterations),
			attribute.Int("targets", len(job.Input.Targets)),
		)
		h.log.Debug("simulation started", "job_id", job.ID, "iterations", job.Input.Config.Iterations)
	}

	res, err = sim.Run(runCtx, job.Input, sim.Options{
		Workers:       h.cfg.Workers,
		Progress:      job.report,
		Table:         table,
		MaxIterations: h.cfg.MaxIterations,
		MaxCells:      h.cfg.MaxCells,
	})
	state, res, err = classify(runCtx, ctx, res, err)
	if res != nil {
		span.SetAttributes(attribute.Int("completed_iterations", res.CompletedIterations))
	}
}

// classify maps a sim.Run outcome onto a terminal state. The wall-clock cap
// is a normal completion with a partial result; a withdrawn caller is a
// cancellation carrying its cause.
func classify(runCtx, jobCtx context.Context, res *sim.Result, err error) (State, *sim.Result, error) {
	switch {
	case err == nil:
		return StateCompleted, res, nil
	case res != nil && errors.Is(context.Cause(runCtx), errWallClock) && jobCtx.Err() == nil:
		return StateCompleted, res, nil
	case res != nil && jobCtx.Err() != nil:
		cause := context.Cause(jobCtx)
		if !errors.Is(cause, ErrCancelled) {
			cause = fmt.Errorf("%w: %v", ErrCancelled, cause)
		}
		return StateCancelled, res, cause
	default:
		return StateFailed, nil, err
	}
}

// prune drops the oldest finished jobs beyond MaxJobs. Callers hold h.mu.
func (h *Host) prune() {
	for len(h.order) > h.cfg.MaxJobs {
		dropped := false
		for i, id := range h.order {
			j := h.jobs[id]
			if j == nil || j.State().Terminal() {
				delete(h.jobs, id)
				if j != nil && h.sessions[j.Session] == j {
					delete(h.sessions, j.Session)
				}
				h.order = append(h.order[:i], h.order[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			return
		}
	}
}

// Job looks up a retained job.
func (h *Host) Job(id string) (*Job, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	j, ok := h.jobs[id]
	return j, ok
}

// Latest returns the newest job of a session.
func (h *Host) Latest(session string) (*Job, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	j, ok := h.sessions[session]
	return j, ok
}

// Cancel cancels a job by ID.
func (h *Host) Cancel(id string) bool {
	j, ok := h.Job(id)
	if ok {
		j.Cancel()
	}
	return ok
}

// Shutdown cancels every running job and waits for them, or for ctx.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for _, j := range h.jobs {
		j.cancel(ErrClosed)
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
