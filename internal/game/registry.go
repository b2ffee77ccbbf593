package game

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/token"
)

// Rules holds the live rule table and currency rates of one game. Readers
// never block; a reload swaps both, and a failed reload keeps the previous
// ones.
type Rules struct {
	loader *Loader
	game   string
	logger *slog.Logger

	table atomic.Pointer[gacha.Table]
	rates atomic.Pointer[token.Rates]
}

// NewRules loads the table of game once; that first load must succeed.
func NewRules(loader *Loader, game string, logger *slog.Logger) (*Rules, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Rules{loader: loader, game: game, logger: logger}
	t, rates, err := r.load()
	if err != nil {
		return nil, err
	}
	r.table.Store(&t)
	r.rates.Store(&rates)
	return r, nil
}

func (r *Rules) load() (gacha.Table, token.Rates, error) {
	t, err := r.loader.Table(r.game)
	if err != nil {
		return nil, token.Rates{}, err
	}
	rates, err := r.loader.Tokens(r.game)
	if err != nil {
		return nil, token.Rates{}, err
	}
	return t, rates, nil
}

func (r *Rules) Game() string { return r.game }

// Table returns the current table. Callers must not modify it.
func (r *Rules) Table() gacha.Table { return *r.table.Load() }

// Rates returns the current currency-to-pull rates.
func (r *Rules) Rates() token.Rates { return *r.rates.Load() }

// Reload rereads the YAML tree.
func (r *Rules) Reload() error {
	r.loader.Invalidate()
	t, rates, err := r.load()
	if err != nil {
		r.logger.Warn("rules reload rejected, keeping previous table", "game", r.game, "err", err)
		return err
	}
	r.table.Store(&t)
	r.rates.Store(&rates)
	r.logger.Info("rules reloaded", "game", r.game, "version", t[gacha.BannerCharacter].Version())
	return nil
}

// Watch reloads on file changes until ctx is done. onReload, when set, sees
// the outcome of every reload the watcher triggers.
func (r *Rules) Watch(ctx context.Context, debounce time.Duration, onReload func(error)) error {
	w, err := NewWatcher(r.loader.Paths().WatchDirs(r.game), debounce, func() {
		err := r.Reload()
		if onReload != nil {
			onReload(err)
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx)
}
