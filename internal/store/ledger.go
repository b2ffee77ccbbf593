package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/xtding233/wishsim/internal/ledger"
	"github.com/xtding233/wishsim/internal/token"
)

// SaveSnapshot inserts snap, assigning an ID when it has none.
func (s *Store) SaveSnapshot(ctx context.Context, snap *ledger.Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	w := snap.Wallet
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, taken_at, primogems, genesis_crystals, intertwined, acquaint, starglitter)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, toMillis(snap.Timestamp), w.Primogems, w.GenesisCrystals, w.Intertwined, w.Acquaint, w.Starglitter)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot or ErrNotFound.
func (s *Store) LatestSnapshot(ctx context.Context) (*ledger.Snapshot, error) {
	var (
		snap ledger.Snapshot
		ms   int64
		w    token.Wallet
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, taken_at, primogems, genesis_crystals, intertwined, acquaint, starglitter
		FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT 1`).
		Scan(&snap.ID, &ms, &w.Primogems, &w.GenesisCrystals, &w.Intertwined, &w.Acquaint, &w.Starglitter)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	snap.Timestamp = fromMillis(ms)
	snap.Wallet = w
	return &snap, nil
}

func (s *Store) AddPrimogemEntry(ctx context.Context, e *ledger.PrimogemEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO primogem_entries (id, recorded_at, amount, source, note) VALUES (?, ?, ?, ?, ?)`,
		e.ID, toMillis(e.Timestamp), e.Amount, string(e.Source), e.Note)
	if err != nil {
		return fmt.Errorf("failed to save primogem entry: %w", err)
	}
	return nil
}

func (s *Store) PrimogemEntries(ctx context.Context) ([]ledger.PrimogemEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recorded_at, amount, source, note FROM primogem_entries ORDER BY recorded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query primogem entries: %w", err)
	}
	defer rows.Close()

	out := []ledger.PrimogemEntry{}
	for rows.Next() {
		var (
			e   ledger.PrimogemEntry
			ms  int64
			src string
		)
		if err := rows.Scan(&e.ID, &ms, &e.Amount, &src, &e.Note); err != nil {
			return nil, fmt.Errorf("failed to scan primogem entry: %w", err)
		}
		e.Timestamp = fromMillis(ms)
		e.Source = ledger.Source(src)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) AddFateEntry(ctx context.Context, e *ledger.FateEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fate_entries (id, recorded_at, fate_type, amount, source) VALUES (?, ?, ?, ?, ?)`,
		e.ID, toMillis(e.Timestamp), string(e.FateType), e.Amount, e.Source)
	if err != nil {
		return fmt.Errorf("failed to save fate entry: %w", err)
	}
	return nil
}

func (s *Store) FateEntries(ctx context.Context) ([]ledger.FateEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recorded_at, fate_type, amount, source FROM fate_entries ORDER BY recorded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fate entries: %w", err)
	}
	defer rows.Close()

	out := []ledger.FateEntry{}
	for rows.Next() {
		var (
			e  ledger.FateEntry
			ms int64
			ft string
		)
		if err := rows.Scan(&e.ID, &ms, &ft, &e.Amount, &e.Source); err != nil {
			return nil, fmt.Errorf("failed to scan fate entry: %w", err)
		}
		e.Timestamp = fromMillis(ms)
		e.FateType = ledger.FateType(ft)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Records loads everything ledger.AvailablePulls needs.
func (s *Store) Records(ctx context.Context) (ledger.Records, error) {
	var r ledger.Records
	snap, err := s.LatestSnapshot(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return r, err
	default:
		r.Snapshot = snap
	}
	if r.Primogems, err = s.PrimogemEntries(ctx); err != nil {
		return r, err
	}
	if r.Fates, err = s.FateEntries(ctx); err != nil {
		return r, err
	}
	if r.Wishes, err = s.Wishes(ctx); err != nil {
		return r, err
	}
	return r, nil
}
