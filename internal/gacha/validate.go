package gacha

import (
	"fmt"
	"math"
)

func validateProb(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return ErrInvalidProb
	}
	if p < 0 || p > 1 {
		return ErrInvalidProb
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// validateRules returns every semantic problem with br for the banner type.
func validateRules(banner BannerType, br BannerRules) []string {
	var errs []string

	if _, err := ParseBannerType(string(banner)); err != nil || banner == "" {
		errs = append(errs, fmt.Sprintf("unknown banner type %q", banner))
	}
	if br.HardPity < 1 {
		errs = append(errs, "hard_pity must be >= 1")
	}
	if br.SoftPityStart < 0 {
		errs = append(errs, "soft_pity_start must be >= 0")
	}
	if br.HardPity <= br.SoftPityStart {
		errs = append(errs, "hard_pity must be greater than soft_pity_start")
	}
	if !finite(br.BaseRate) || br.BaseRate <= 0 || br.BaseRate >= 1 {
		errs = append(errs, "base_rate must be in (0,1)")
	}
	if !finite(br.SoftPityRateIncrease) || br.SoftPityRateIncrease < 0 {
		errs = append(errs, "soft_pity_rate_increase must be >= 0")
	}

	if br.HasCapturingRadiance {
		if banner != BannerCharacter {
			errs = append(errs, "capturing radiance is only valid on the character banner")
		}
		if br.RadianceThreshold < 1 {
			errs = append(errs, "radiance_threshold must be >= 1 when capturing radiance is enabled")
		}
	}
	if br.HasFatePoints {
		if banner != BannerWeapon {
			errs = append(errs, "fate points are only valid on the weapon banner")
		}
		if br.MaxFatePoints < 1 {
			errs = append(errs, "max_fate_points must be >= 1 when fate points are enabled")
		}
	}
	return errs
}
