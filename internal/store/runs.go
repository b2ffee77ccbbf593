package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xtding233/wishsim/internal/host"
	"github.com/xtding233/wishsim/internal/sim"
)

const scenarioSessionPrefix = "scenario:"

// ScenarioSession is the host session key used for runs of a saved scenario;
// RecordJob links those runs back to it.
func ScenarioSession(id string) string { return scenarioSessionPrefix + id }

// Run is one persisted simulation job.
type Run struct {
	ID                  string        `json:"id"`
	ScenarioID          string        `json:"scenarioId,omitempty"`
	Session             string        `json:"session"`
	State               string        `json:"state"`
	Seed                uint64        `json:"seed"`
	Iterations          int           `json:"iterations"`
	CompletedIterations int           `json:"completedIterations"`
	Partial             bool          `json:"partial"`
	Error               string        `json:"error,omitempty"`
	Result              *sim.Result   `json:"result,omitempty"`
	StartedAt           time.Time     `json:"startedAt"`
	Duration            time.Duration `json:"-"`
	DurationMs          int64         `json:"durationMs"`
}

func (s *Store) SaveRun(ctx context.Context, r *Run) error {
	var res sql.NullString
	if r.Result != nil {
		b, err := json.Marshal(r.Result)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		res = sql.NullString{String: string(b), Valid: true}
	}
	var scenario sql.NullString
	if r.ScenarioID != "" {
		scenario = sql.NullString{String: r.ScenarioID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO simulation_runs
			(id, scenario_id, session, state, seed, iterations, completed_iterations, partial, error, result_json, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, scenario, r.Session, r.State, int64(r.Seed), r.Iterations, r.CompletedIterations,
		boolInt(r.Partial), r.Error, res, toMillis(r.StartedAt), r.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const runColumns = `id, scenario_id, session, state, seed, iterations, completed_iterations, partial, error, result_json, started_at, duration_ms`

func scanRun(r rowScanner) (*Run, error) {
	var (
		run      Run
		scenario sql.NullString
		seed     int64
		partial  int
		res      sql.NullString
		started  int64
		dur      int64
	)
	err := r.Scan(&run.ID, &scenario, &run.Session, &run.State, &seed, &run.Iterations, &run.CompletedIterations,
		&partial, &run.Error, &res, &started, &dur)
	if err != nil {
		return nil, err
	}
	run.ScenarioID = scenario.String
	run.Seed = uint64(seed)
	run.Partial = partial == 1
	run.StartedAt = fromMillis(started)
	run.Duration = time.Duration(dur) * time.Millisecond
	run.DurationMs = dur
	if res.Valid {
		run.Result = new(sim.Result)
		if err := json.Unmarshal([]byte(res.String), run.Result); err != nil {
			return nil, fmt.Errorf("run %s: failed to decode result: %w", run.ID, err)
		}
	}
	return &run, nil
}

func (s *Store) Run(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM simulation_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return run, nil
}

// Runs lists the newest runs first; an empty scenarioID lists every run.
func (s *Store) Runs(ctx context.Context, scenarioID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + runColumns + ` FROM simulation_runs`
	args := []any{}
	if scenarioID != "" {
		q += ` WHERE scenario_id = ?`
		args = append(args, scenarioID)
	}
	q += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// RunFromJob converts a finished job into a Run.
func RunFromJob(j *host.Job) *Run {
	res, err := j.Result()
	r := &Run{
		ID:        j.ID,
		Session:   j.Session,
		State:     j.State().String(),
		StartedAt: j.Created,
		Duration:  j.Duration(),
		Result:    res,
	}
	r.DurationMs = r.Duration.Milliseconds()
	if id, ok := strings.CutPrefix(j.Session, scenarioSessionPrefix); ok {
		r.ScenarioID = id
	}
	if j.Input != nil {
		r.Iterations = j.Input.Config.Iterations
	}
	if res != nil {
		r.Seed = res.Seed
		r.CompletedIterations = res.CompletedIterations
		r.Partial = res.Partial
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// RecordJob persists finished jobs; it implements host.Recorder.
func (s *Store) RecordJob(j *host.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.SaveRun(ctx, RunFromJob(j)); err != nil {
		s.log.Warn("failed to record simulation run", "job_id", j.ID, "err", err)
	}
}

var _ host.Recorder = (*Store)(nil)
