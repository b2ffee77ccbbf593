package gacha

// State is the pity state of one banner type. The engine never mutates it;
// Pull returns the follow-up value.
type State struct {
	Pity          int  `json:"pity" yaml:"pity"`                    // pulls since the last 5-star
	Guaranteed    bool `json:"guaranteed" yaml:"guaranteed"`        // next 5-star is featured
	RadiantStreak int  `json:"radiantStreak" yaml:"radiant_streak"` // plain 50/50 wins since radiance last fired
	FatePoints    int  `json:"fatePoints" yaml:"fate_points"`       // weapon only
}

// Outcome reports one pull.
type Outcome struct {
	Got5Star          bool  `json:"got5Star"`
	WasFeatured       bool  `json:"wasFeatured"`
	TriggeredRadiance bool  `json:"triggeredRadiance"`
	Next              State `json:"next"`
}

// Pull advances s by exactly one pull under rules.
// One uniform value decides the 5-star; a second one is drawn only for an
// actual 50/50 (guaranteed and forced outcomes consume nothing).
// If rng is nil, DefaultRNG is used.
func Pull(s State, rules Rules, rng RandomSource) Outcome {
	if rng == nil {
		rng = DefaultRNG()
	}
	if rng.Float64() >= rules.Curve().Rate(s.Pity) {
		s.Pity++
		return Outcome{Next: s}
	}

	s.Pity = 0
	p, win, lose, radiance := rules.featured(s)
	if bernoulli(p, rng) {
		return Outcome{Got5Star: true, WasFeatured: true, TriggeredRadiance: radiance, Next: win}
	}
	return Outcome{Got5Star: true, Next: lose}
}
