package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/xtding233/wishsim/internal/gacha"
)

// AddWishes stores wishes in one transaction. A wish whose ID already exists
// replaces the stored one, so re-importing a history is idempotent.
func (s *Store) AddWishes(ctx context.Context, wishes []gacha.Wish) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO wishes (id, banner_type, item_key, rarity, pulled_at, is_featured, charted_weapon)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare wish insert: %w", err)
	}
	defer stmt.Close()

	for i := range wishes {
		w := &wishes[i]
		b, perr := gacha.ParseBannerType(string(w.Banner))
		if perr != nil {
			return fmt.Errorf("wish %d: %w", i, perr)
		}
		w.Banner = b
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		var featured sql.NullInt64
		if w.Featured != nil {
			featured = sql.NullInt64{Int64: int64(boolInt(*w.Featured)), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, w.ID, string(w.Banner), w.ItemKey, w.Rarity, toMillis(w.Timestamp), featured, w.ChartedWeapon); err != nil {
			return fmt.Errorf("failed to save wish %s: %w", w.ID, err)
		}
	}
	return tx.Commit()
}

// Wishes returns the whole history in pull order.
func (s *Store) Wishes(ctx context.Context) ([]gacha.Wish, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, banner_type, item_key, rarity, pulled_at, is_featured, charted_weapon
		FROM wishes ORDER BY pulled_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query wishes: %w", err)
	}
	defer rows.Close()

	out := []gacha.Wish{}
	for rows.Next() {
		var (
			w        gacha.Wish
			banner   string
			ms       int64
			featured sql.NullInt64
		)
		if err := rows.Scan(&w.ID, &banner, &w.ItemKey, &w.Rarity, &ms, &featured, &w.ChartedWeapon); err != nil {
			return nil, fmt.Errorf("failed to scan wish: %w", err)
		}
		w.Banner = gacha.BannerType(banner)
		w.Timestamp = fromMillis(ms)
		if featured.Valid {
			f := featured.Int64 == 1
			w.Featured = &f
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
