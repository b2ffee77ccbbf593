package host

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/xtding233/wishsim/internal/sim"
)

// State is the lifecycle of a job: Idle -> Running -> Completed|Cancelled|Failed.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s >= StateCompleted }

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for st := StateIdle; st <= StateFailed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown job state %q", b)
}

var (
	// ErrCancelled is returned by a job whose caller withdrew interest.
	// It is an outcome, not a failure.
	ErrCancelled = errors.New("simulation cancelled")
	// ErrSuperseded cancels a job replaced by a newer one in its session.
	ErrSuperseded = fmt.Errorf("%w: superseded by a newer request", ErrCancelled)
	// ErrRunning is returned by Result before the job has finished.
	ErrRunning   = errors.New("simulation still running")
	ErrClosed    = errors.New("host closed")
	errWallClock = errors.New("wall-clock cap reached")
)

// Job is one asynchronous simulation run.
type Job struct {
	ID      string
	Session string
	Created time.Time
	Input   *sim.Input

	state    atomic.Int32
	fraction atomic.Uint64 // float64 bits
	progress chan float64
	done     chan struct{}
	cancel   context.CancelCauseFunc

	// written once before done is closed
	res      *sim.Result
	err      error
	finished time.Time
}

func newJob(id, session string, in *sim.Input, cancel context.CancelCauseFunc) *Job {
	return &Job{
		ID:       id,
		Session:  session,
		Created:  time.Now(),
		Input:    in,
		progress: make(chan float64, 1),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
}

func (j *Job) State() State { return State(j.state.Load()) }

// Fraction is the latest reported progress in [0,1].
func (j *Job) Fraction() float64 { return math.Float64frombits(j.fraction.Load()) }

// Progress delivers progress updates, keeping only the latest one when the
// reader falls behind. It is closed when the job finishes.
func (j *Job) Progress() <-chan float64 { return j.progress }

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel withdraws interest; the job ends Cancelled at its next chunk boundary.
func (j *Job) Cancel() { j.cancel(ErrCancelled) }

// Result returns the outcome of a finished job. A cancelled job returns its
// partial result with ErrCancelled (or ErrSuperseded); a job that hit its
// wall-clock cap completes with Result.Partial set and no error.
func (j *Job) Result() (*sim.Result, error) {
	select {
	case <-j.done:
		return j.res, j.err
	default:
		return nil, ErrRunning
	}
}

// Wait blocks until the job finishes or ctx ends.
func (j *Job) Wait(ctx context.Context) (*sim.Result, error) {
	select {
	case <-j.done:
		return j.res, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Duration is the run time of a finished job, or the time so far.
func (j *Job) Duration() time.Duration {
	select {
	case <-j.done:
		return j.finished.Sub(j.Created)
	default:
		return time.Since(j.Created)
	}
}

func (j *Job) report(f float64) {
	j.fraction.Store(math.Float64bits(f))
	select {
	case j.progress <- f:
	default:
		// drop the stale value so the newest one is always readable
		select {
		case <-j.progress:
		default:
		}
		select {
		case j.progress <- f:
		default:
		}
	}
}

func (j *Job) finish(st State, res *sim.Result, err error) {
	j.res, j.err = res, err
	j.finished = time.Now()
	j.state.Store(int32(st))
	close(j.progress)
	close(j.done)
}
