package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/sim"
)

// Results caches simulation results by input. A nil *Results never hits.
type Results struct {
	c   Cache
	ttl time.Duration
}

func NewResults(c Cache, ttl time.Duration) *Results {
	if c == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Results{c: c, ttl: ttl}
}

// Key hashes the canonical JSON of in together with the rules table. Only
// runs that are fully determined by their input get a key: a fixed seed and
// a fixed reference date.
func Key(in *sim.Input, table gacha.Table) (string, bool) {
	if in == nil || in.Config.Seed == nil || in.AsOf == "" {
		return "", false
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", false
	}
	h := sha256.New()
	h.Write(b)
	for _, bt := range gacha.BannerTypes {
		if r, ok := table[bt]; ok {
			fmt.Fprintf(h, "|%s=%#v", bt, r)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), true
}

func (r *Results) Get(ctx context.Context, key string) (*sim.Result, bool) {
	if r == nil || key == "" {
		return nil, false
	}
	b, err := r.c.Get(ctx, key)
	if err != nil {
		slog.Warn("result cache read failed", "err", err)
		return nil, false
	}
	if b == nil {
		return nil, false
	}
	var res sim.Result
	if err := json.Unmarshal(b, &res); err != nil {
		_ = r.c.Delete(ctx, key)
		return nil, false
	}
	return &res, true
}

// Put stores complete results only.
func (r *Results) Put(ctx context.Context, key string, res *sim.Result) {
	if r == nil || key == "" || res == nil || res.Partial {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := r.c.Set(ctx, key, b, r.ttl); err != nil {
		slog.Warn("result cache write failed", "err", err)
	}
}
