package sim

import (
	"github.com/xtding233/wishsim/internal/gacha"
)

// Target is one planned banner pull. Targets are simulated in date order.
type Target struct {
	ID                string           `json:"id,omitempty" yaml:"id,omitempty"`
	CharacterKey      string           `json:"characterKey" yaml:"characterKey"`
	ExpectedStartDate string           `json:"expectedStartDate" yaml:"expectedStartDate"` // 2006-01-02 or RFC 3339
	Priority          int              `json:"priority" yaml:"priority"`                   // 1 = must-have
	MaxPullBudget     *int             `json:"maxPullBudget" yaml:"maxPullBudget"`         // nil = no cap
	BannerType        gacha.BannerType `json:"bannerType,omitempty" yaml:"bannerType,omitempty"`
	CopiesNeeded      int              `json:"copiesNeeded,omitempty" yaml:"copiesNeeded,omitempty"` // 0 means 1
}

// StateOverride replaces parts of the banner state right before a target.
// Nil fields inherit whatever the previous targets left behind.
type StateOverride struct {
	Pity          *int  `json:"pity" yaml:"pity"`
	Guaranteed    *bool `json:"guaranteed" yaml:"guaranteed"`
	RadiantStreak *int  `json:"radiantStreak" yaml:"radiantStreak"`
	FatePoints    *int  `json:"fatePoints" yaml:"fatePoints"`
}

func (o *StateOverride) apply(s *gacha.State) {
	if o == nil {
		return
	}
	if o.Pity != nil {
		s.Pity = *o.Pity
	}
	if o.Guaranteed != nil {
		s.Guaranteed = *o.Guaranteed
	}
	if o.RadiantStreak != nil {
		s.RadiantStreak = *o.RadiantStreak
	}
	if o.FatePoints != nil {
		s.FatePoints = *o.FatePoints
	}
}

// Config controls the trial count and reproducibility of a run.
type Config struct {
	Iterations int    `json:"iterations" yaml:"iterations"`
	Seed       *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	// ChunkSize is the number of trials between progress reports and
	// cancellation checks; 0 picks about 1% of the run.
	ChunkSize int `json:"chunkSize,omitempty" yaml:"chunkSize,omitempty"`
}

// Input is everything one simulation run needs.
type Input struct {
	Targets []Target `json:"targets" yaml:"targets"`

	StartingPity          int  `json:"startingPity" yaml:"startingPity"`
	StartingGuaranteed    bool `json:"startingGuaranteed" yaml:"startingGuaranteed"`
	StartingRadiantStreak int  `json:"startingRadiantStreak" yaml:"startingRadiantStreak"`
	StartingFatePoints    int  `json:"startingFatePoints,omitempty" yaml:"startingFatePoints,omitempty"`

	StartingPulls int     `json:"startingPulls" yaml:"startingPulls"`
	IncomePerDay  float64 `json:"incomePerDay" yaml:"incomePerDay"`

	// Rules replaces the character banner rules of the table for this run.
	Rules *gacha.BannerRules `json:"rules,omitempty" yaml:"rules,omitempty"`

	Config Config `json:"config" yaml:"config"`

	// PerTargetStates is parallel to Targets (input order).
	PerTargetStates []*StateOverride `json:"perTargetStates,omitempty" yaml:"perTargetStates,omitempty"`

	// AsOf is the date income accrues from; empty means the run's clock.
	AsOf string `json:"asOf,omitempty" yaml:"asOf,omitempty"`
}

// StartState is the snapshot every trial starts from. Only the character
// banner carries the starting pity; the weapon banner carries fate points.
func (in *Input) StartState() map[gacha.BannerType]gacha.State {
	return map[gacha.BannerType]gacha.State{
		gacha.BannerCharacter: {
			Pity:          in.StartingPity,
			Guaranteed:    in.StartingGuaranteed,
			RadiantStreak: in.StartingRadiantStreak,
		},
		gacha.BannerWeapon:     {FatePoints: in.StartingFatePoints},
		gacha.BannerStandard:   {},
		gacha.BannerChronicled: {},
	}
}
