package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xtding233/wishsim/internal/sim"
)

// Scenario is a saved simulation input.
type Scenario struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Game  string    `json:"game"`
	Input sim.Input `json:"input"`
	// UseLedger replaces startingPulls and incomePerDay with the ledger
	// budget whenever the scenario is run.
	UseLedger bool      `json:"useLedger"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SaveScenario inserts sc or updates it when the ID exists.
func (s *Store) SaveScenario(ctx context.Context, sc *Scenario) error {
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	if sc.Game == "" {
		sc.Game = "genshin"
	}
	now := time.Now().UTC()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	sc.UpdatedAt = now

	in, err := json.Marshal(sc.Input)
	if err != nil {
		return fmt.Errorf("failed to encode scenario input: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scenarios (id, name, game, input_json, use_ledger, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, game = excluded.game, input_json = excluded.input_json,
			use_ledger = excluded.use_ledger, updated_at = excluded.updated_at`,
		sc.ID, sc.Name, sc.Game, string(in), boolInt(sc.UseLedger), toMillis(sc.CreatedAt), toMillis(sc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save scenario: %w", err)
	}
	return nil
}

const scenarioColumns = `id, name, game, input_json, use_ledger, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenario(r rowScanner) (*Scenario, error) {
	var (
		sc               Scenario
		in               string
		useLedger        int
		created, updated int64
	)
	if err := r.Scan(&sc.ID, &sc.Name, &sc.Game, &in, &useLedger, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(in), &sc.Input); err != nil {
		return nil, fmt.Errorf("scenario %s: failed to decode input: %w", sc.ID, err)
	}
	sc.UseLedger = useLedger == 1
	sc.CreatedAt, sc.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &sc, nil
}

func (s *Store) Scenario(ctx context.Context, id string) (*Scenario, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios WHERE id = ?`, id)
	sc, err := scanScenario(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	return sc, nil
}

// Scenarios lists every saved scenario, oldest first.
func (s *Store) Scenarios(ctx context.Context) ([]Scenario, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	out := []Scenario{}
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

func (s *Store) DeleteScenario(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scenarios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
