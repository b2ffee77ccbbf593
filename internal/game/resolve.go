// resolve.go
package game

import (
	"fmt"

	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/token"
)

// Overrides carries per-request changes applied on top of the banner file.
type Overrides struct {
	SoftPityStart        *int     `json:"softPityStart,omitempty"`
	HardPity             *int     `json:"hardPity,omitempty"`
	BaseRate             *float64 `json:"baseRate,omitempty"`
	SoftPityRateIncrease *float64 `json:"softPityRateIncrease,omitempty"`
	CapturingRadiance    *bool    `json:"hasCapturingRadiance,omitempty"`
	RadianceThreshold    *int     `json:"radianceThreshold,omitempty"`
	FatePoints           *bool    `json:"hasFatePoints,omitempty"`
	MaxFatePoints        *int     `json:"maxFatePoints,omitempty"`
}

func (o Overrides) raw() RawConfig {
	cfg := RawConfig{Pity: PityConfig{
		SoftStart:    o.SoftPityStart,
		Hard:         o.HardPity,
		BaseRate:     o.BaseRate,
		RateIncrease: o.SoftPityRateIncrease,
	}}
	if o.CapturingRadiance != nil || o.RadianceThreshold != nil {
		cfg.Radiance = &RadianceConfig{Enabled: o.CapturingRadiance, Threshold: o.RadianceThreshold}
	}
	if o.FatePoints != nil || o.MaxFatePoints != nil {
		cfg.Fate = &FateConfig{Enabled: o.FatePoints, Max: o.MaxFatePoints}
	}
	return cfg
}

type Resolver interface {
	// Returns merged RawConfig and the flat rules it describes
	Resolve(game string, banner gacha.BannerType, o Overrides) (RawConfig, gacha.BannerRules, error)
}

var _ Resolver = (*Loader)(nil)

// Resolve merges default → game → banner → overrides and validates the result.
func (l *Loader) Resolve(game string, banner gacha.BannerType, o Overrides) (RawConfig, gacha.BannerRules, error) {
	cfg, err := l.LoadMerged(game, string(banner))
	if err != nil {
		return RawConfig{}, gacha.BannerRules{}, err
	}
	cfg = mergeRaw(cfg, o.raw())
	if err := ValidateRaw(banner, cfg); err != nil {
		return RawConfig{}, gacha.BannerRules{}, fmt.Errorf("%s/%s: %w", game, banner, err)
	}
	return cfg, cfg.BannerRules(), nil
}

// Table compiles the rules of every banner type of game.
func (l *Loader) Table(game string) (gacha.Table, error) {
	raw := make(map[gacha.BannerType]gacha.BannerRules, len(gacha.BannerTypes))
	for _, b := range gacha.BannerTypes {
		_, br, err := l.Resolve(game, b, Overrides{})
		if err != nil {
			return nil, err
		}
		raw[b] = br
	}
	return gacha.CompileTable(raw)
}

// Tokens returns the currency rates of game, falling back to token.DefaultRates.
func (l *Loader) Tokens(game string) (token.Rates, error) {
	cfg, err := l.LoadMerged(game, "")
	if err != nil {
		return token.Rates{}, err
	}
	rates := token.DefaultRates()
	if cfg.Tokens == nil {
		return rates, nil
	}
	if errs := tokenProblems(cfg.Tokens); len(errs) > 0 {
		return token.Rates{}, fmt.Errorf("%s: %w", game, &gacha.ConfigError{Problems: errs})
	}
	if cfg.Tokens.PerPull != nil {
		rates.Primogem.PerDraw = *cfg.Tokens.PerPull
	}
	if cfg.Tokens.StarglitterPerPull != nil {
		rates.Starglitter.PerDraw = *cfg.Tokens.StarglitterPerPull
	}
	return rates, nil
}
