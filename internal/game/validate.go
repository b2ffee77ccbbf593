package game

import (
	"fmt"

	"github.com/xtding233/wishsim/internal/gacha"
)

// ValidateRaw checks a merged RawConfig for one banner type. Missing required
// fields and bad token rates are reported together with the rule problems
// found by gacha.Compile.
func ValidateRaw(banner gacha.BannerType, cfg RawConfig) error {
	var errs []string

	// pity
	if cfg.Pity.SoftStart == nil {
		errs = append(errs, "pity.soft_pity_start is required")
	}
	if cfg.Pity.Hard == nil {
		errs = append(errs, "pity.hard_pity is required")
	}
	if cfg.Pity.BaseRate == nil {
		errs = append(errs, "pity.base_rate is required")
	}
	if cfg.Pity.RateIncrease == nil {
		errs = append(errs, "pity.soft_pity_rate_increase is required")
	}

	errs = append(errs, tokenProblems(cfg.Tokens)...)

	if len(errs) > 0 {
		return &gacha.ConfigError{Banner: banner, Problems: errs}
	}
	if _, err := gacha.Compile(banner, cfg.BannerRules()); err != nil {
		return fmt.Errorf("%s: %w", cfg.versionLabel(), err)
	}
	return nil
}

func tokenProblems(t *TokenConfig) []string {
	if t == nil {
		return nil
	}
	var errs []string
	if t.PerPull != nil && *t.PerPull < 1 {
		errs = append(errs, "tokens.per_pull must be >= 1")
	}
	if t.StarglitterPerPull != nil && *t.StarglitterPerPull < 1 {
		errs = append(errs, "tokens.starglitter_per_pull must be >= 1")
	}
	return errs
}

// BannerRules flattens cfg; nil fields become zero values.
func (cfg RawConfig) BannerRules() gacha.BannerRules {
	br := gacha.BannerRules{
		Version:              cfg.Version,
		SoftPityStart:        deref(cfg.Pity.SoftStart),
		HardPity:             deref(cfg.Pity.Hard),
		BaseRate:             deref(cfg.Pity.BaseRate),
		SoftPityRateIncrease: deref(cfg.Pity.RateIncrease),
	}
	if cfg.Radiance != nil {
		br.HasCapturingRadiance = deref(cfg.Radiance.Enabled)
		br.RadianceThreshold = deref(cfg.Radiance.Threshold)
	}
	if cfg.Fate != nil {
		br.HasFatePoints = deref(cfg.Fate.Enabled)
		br.MaxFatePoints = deref(cfg.Fate.Max)
	}
	return br
}

func (cfg RawConfig) versionLabel() string {
	if cfg.Version == "" {
		return "rules"
	}
	return "rules " + cfg.Version
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
