package host_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/host"
	"github.com/xtding233/wishsim/internal/sim"
)

func input(iterations int) *sim.Input {
	seed := int64(7)
	return &sim.Input{
		Targets: []sim.Target{
			{CharacterKey: "Arlecchino", ExpectedStartDate: "2025-02-01", Priority: 1},
			{CharacterKey: "Clorinde", ExpectedStartDate: "2025-03-01", Priority: 2},
		},
		StartingPulls: 120,
		IncomePerDay:  1.2,
		AsOf:          "2025-01-01",
		Config:        sim.Config{Iterations: iterations, Seed: &seed},
	}
}

func wait(t *testing.T, j *host.Job) (*sim.Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := j.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "job never finished")
	return res, err
}

type memRecorder struct {
	mu   sync.Mutex
	jobs []*host.Job
}

func (m *memRecorder) RecordJob(j *host.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, j)
}

func TestJobCompletes(t *testing.T) {
	rec := &memRecorder{}
	h := host.New(host.Config{Recorder: rec})

	j, err := h.Submit(context.Background(), "s1", input(2000), host.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, j.ID)

	res, err := wait(t, j)
	require.NoError(t, err)
	assert.Equal(t, host.StateCompleted, j.State())
	assert.False(t, res.Partial)
	assert.Equal(t, 2000, res.CompletedIterations)

	direct, err := sim.Run(context.Background(), input(2000), sim.Options{})
	require.NoError(t, err)
	assert.Equal(t, direct, res)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.jobs, 1)
	assert.Equal(t, j.ID, rec.jobs[0].ID)
}

func TestProgressEndsAtOne(t *testing.T) {
	h := host.New(host.Config{Workers: 1})
	in := input(5000)
	in.Config.ChunkSize = 250
	j, err := h.Submit(context.Background(), "s", in, host.Options{})
	require.NoError(t, err)

	last := 0.0
	for f := range j.Progress() {
		assert.GreaterOrEqual(t, f, last)
		last = f
	}
	_, err = wait(t, j)
	require.NoError(t, err)
	assert.Equal(t, 1.0, j.Fraction())
}

func TestInvalidInputFails(t *testing.T) {
	h := host.New(host.Config{})

	j, err := h.Submit(context.Background(), "s", input(0), host.Options{})
	require.NoError(t, err)
	res, err := wait(t, j)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, gacha.ErrConfig)
	assert.Equal(t, host.StateFailed, j.State())

	bad := input(10)
	bad.Targets[0].ExpectedStartDate = "soon"
	j, err = h.Submit(context.Background(), "s", bad, host.Options{})
	require.NoError(t, err)
	_, err = wait(t, j)
	assert.ErrorIs(t, err, sim.ErrInvalidInput)
	assert.Equal(t, host.StateFailed, j.State())
}

func TestOversizedRunFailsBeforeAllocating(t *testing.T) {
	h := host.New(host.Config{MaxIterations: 10_000})
	assert.Equal(t, 10_000, h.MaxIterations())

	j, err := h.Submit(context.Background(), "s", input(1_000_000_000_000), host.Options{})
	require.NoError(t, err)
	res, err := wait(t, j)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, gacha.ErrConfig)
	assert.Equal(t, host.StateFailed, j.State())

	assert.Equal(t, sim.DefaultMaxIterations, host.New(host.Config{}).MaxIterations())
}

func TestTooManyTargetsFails(t *testing.T) {
	h := host.New(host.Config{MaxCells: 1000})
	assert.Equal(t, 1000, h.MaxCells())

	// two targets × 501 iterations
	j, err := h.Submit(context.Background(), "s", input(501), host.Options{})
	require.NoError(t, err)
	res, err := wait(t, j)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, gacha.ErrConfig)
	assert.Equal(t, host.StateFailed, j.State())

	j, err = h.Submit(context.Background(), "s", input(500), host.Options{})
	require.NoError(t, err)
	_, err = wait(t, j)
	require.NoError(t, err)
	assert.Equal(t, host.StateCompleted, j.State())

	assert.Equal(t, sim.DefaultMaxCells, host.New(host.Config{}).MaxCells())
}

func TestCancelIsNotFailure(t *testing.T) {
	h := host.New(host.Config{})
	j, err := h.Submit(context.Background(), "s", input(2_000_000), host.Options{})
	require.NoError(t, err)

	j.Cancel()
	res, err := wait(t, j)
	assert.ErrorIs(t, err, host.ErrCancelled)
	assert.Equal(t, host.StateCancelled, j.State())
	require.NotNil(t, res)
	assert.True(t, res.Partial)
}

func TestSubmitSupersedesSession(t *testing.T) {
	h := host.New(host.Config{})
	first, err := h.Submit(context.Background(), "planner", input(2_000_000), host.Options{})
	require.NoError(t, err)
	second, err := h.Submit(context.Background(), "planner", input(500), host.Options{})
	require.NoError(t, err)

	_, err = wait(t, first)
	assert.ErrorIs(t, err, host.ErrSuperseded)
	assert.ErrorIs(t, err, host.ErrCancelled)
	assert.Equal(t, host.StateCancelled, first.State())

	_, err = wait(t, second)
	require.NoError(t, err)
	latest, ok := h.Latest("planner")
	require.True(t, ok)
	assert.Equal(t, second.ID, latest.ID)
}

func TestOtherSessionsUntouched(t *testing.T) {
	h := host.New(host.Config{})
	a, err := h.Submit(context.Background(), "a", input(1000), host.Options{})
	require.NoError(t, err)
	b, err := h.Submit(context.Background(), "b", input(1000), host.Options{})
	require.NoError(t, err)

	_, err = wait(t, a)
	require.NoError(t, err)
	_, err = wait(t, b)
	require.NoError(t, err)
}

func TestTimeoutReturnsPartial(t *testing.T) {
	h := host.New(host.Config{})
	j, err := h.Submit(context.Background(), "s", input(2_000_000), host.Options{Timeout: 30 * time.Millisecond})
	require.NoError(t, err)

	res, err := wait(t, j)
	require.NoError(t, err)
	assert.Equal(t, host.StateCompleted, j.State())
	require.NotNil(t, res)
	assert.True(t, res.Partial)
	assert.Less(t, res.CompletedIterations, res.Iterations)
}

func TestResultBeforeDone(t *testing.T) {
	h := host.New(host.Config{})
	j, err := h.Submit(context.Background(), "s", input(2_000_000), host.Options{})
	require.NoError(t, err)
	_, err = j.Result()
	assert.ErrorIs(t, err, host.ErrRunning)
	j.Cancel()
	_, _ = wait(t, j)
}

func TestShutdownRejectsNewJobs(t *testing.T) {
	h := host.New(host.Config{})
	j, err := h.Submit(context.Background(), "s", input(2_000_000), host.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))
	assert.Equal(t, host.StateCancelled, j.State())

	_, err = h.Submit(context.Background(), "s", input(10), host.Options{})
	assert.ErrorIs(t, err, host.ErrClosed)
}

func TestFinishedJobsArePruned(t *testing.T) {
	h := host.New(host.Config{MaxJobs: 2})
	var ids []string
	for _, s := range []string{"a", "b", "c"} {
		j, err := h.Submit(context.Background(), s, input(100), host.Options{})
		require.NoError(t, err)
		_, err = wait(t, j)
		require.NoError(t, err)
		ids = append(ids, j.ID)
	}
	// pruning happens on the next submit
	j, err := h.Submit(context.Background(), "d", input(100), host.Options{})
	require.NoError(t, err)
	_, _ = wait(t, j)

	_, ok := h.Job(ids[0])
	assert.False(t, ok)
	_, ok = h.Job(j.ID)
	assert.True(t, ok)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", host.StateRunning.String())
	assert.True(t, host.StateFailed.Terminal())
	assert.False(t, host.StateIdle.Terminal())
}
