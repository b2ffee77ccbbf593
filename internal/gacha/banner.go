package gacha

// fiftyFifty is the featured chance of an unguaranteed 5-star.
const fiftyFifty = 0.5

// Guarantee first, then radiance bookkeeping on a plain win.
// A loss arms the guarantee and leaves the streak alone; a guaranteed win
// clears the guarantee and also leaves the streak alone.
func (r CharacterRules) featured(s State) (float64, State, State, bool) {
	if s.Guaranteed {
		s.Guaranteed = false
		return 1, s, s, false
	}
	win, lose := s, s
	lose.Guaranteed = true

	radiance := false
	if r.Radiance {
		if s.RadiantStreak >= r.RadianceThreshold {
			radiance = true
			win.RadiantStreak = 0
		} else {
			win.RadiantStreak++
		}
	}
	return fiftyFifty, win, lose, radiance
}

func (r ChronicledRules) featured(s State) (float64, State, State, bool) {
	if s.Guaranteed {
		s.Guaranteed = false
		return 1, s, s, false
	}
	lose := s
	lose.Guaranteed = true
	return fiftyFifty, s, lose, false
}

// Fate points are checked before the 50/50: a full counter forces the
// featured weapon and empties it. Without fate points every 5-star is an
// independent 50/50.
func (r WeaponRules) featured(s State) (float64, State, State, bool) {
	if r.MaxFatePoints <= 0 {
		return fiftyFifty, s, s, false
	}
	if s.FatePoints >= r.MaxFatePoints {
		s.FatePoints = 0
		return 1, s, s, false
	}
	win, lose := s, s
	win.FatePoints = 0
	lose.FatePoints = min(r.MaxFatePoints, s.FatePoints+1)
	return fiftyFifty, win, lose, false
}

func (r StandardRules) featured(s State) (float64, State, State, bool) {
	return 1, s, s, false
}
