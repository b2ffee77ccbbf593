package gacha

import (
	"cmp"
	"slices"
	"time"
)

// Wish is one recorded pull.
type Wish struct {
	ID        string     `json:"id"`
	Banner    BannerType `json:"bannerType"`
	ItemKey   string     `json:"itemKey"`
	Rarity    int        `json:"rarity"`
	Timestamp time.Time  `json:"timestamp"`
	// Featured is nil when unknown; a 5-star is then taken as featured.
	Featured *bool `json:"isFeatured,omitempty"`
	// ChartedWeapon overrides the replay-wide charted weapon for this pull.
	ChartedWeapon string `json:"chartedWeapon,omitempty"`
}

// WishInfo is what replay derives for each 5-star.
type WishInfo struct {
	PityCount         int   `json:"pityCount"`
	WasGuaranteed     bool  `json:"wasGuaranteed"`
	Won5050           *bool `json:"won5050"` // nil when no 50/50 was played
	TriggeredRadiance bool  `json:"triggeredRadiance"`
}

// Snapshot is the pity state of every banner type.
type Snapshot map[BannerType]State

// Replay walks wishes in time order (ties by ID) and returns the resulting
// pity state per banner type plus per-5-star details keyed by wish ID.
// Radiance threshold and fate point cap come from table; banner types
// missing from it fall back to DefaultTable.
//
// Weapon fate points only move while a charted weapon is set: hitting it or
// a full counter empties the counter, any other 5-star adds one.
func Replay(wishes []Wish, table Table, charted string) (Snapshot, map[string]WishInfo) {
	sorted := slices.Clone(wishes)
	slices.SortStableFunc(sorted, func(a, b Wish) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	def := DefaultTable()
	rulesFor := func(b BannerType) Rules {
		if r, ok := table[b]; ok {
			return r
		}
		return def[b]
	}

	snap := Snapshot{}
	for _, b := range BannerTypes {
		snap[b] = State{}
	}
	info := map[string]WishInfo{}

	for _, w := range sorted {
		banner, err := ParseBannerType(string(w.Banner))
		if err != nil {
			continue
		}
		st := snap[banner]
		count := st.Pity + 1
		if w.Rarity != 5 {
			st.Pity = count
			snap[banner] = st
			continue
		}

		featured := w.Featured == nil || *w.Featured
		wi := WishInfo{PityCount: count}
		st.Pity = 0

		switch r := rulesFor(banner).(type) {
		case CharacterRules:
			wi.WasGuaranteed = st.Guaranteed
			if st.Guaranteed {
				st.Guaranteed = false
				break
			}
			wi.Won5050 = &featured
			if !featured {
				st.Guaranteed = true
				break
			}
			if r.Radiance {
				if st.RadiantStreak >= r.RadianceThreshold {
					wi.TriggeredRadiance = true
					st.RadiantStreak = 0
				} else {
					st.RadiantStreak++
				}
			}
		case ChronicledRules:
			wi.WasGuaranteed = st.Guaranteed
			if st.Guaranteed {
				st.Guaranteed = false
				break
			}
			wi.Won5050 = &featured
			st.Guaranteed = !featured
		case WeaponRules:
			wi.WasGuaranteed = r.MaxFatePoints > 0 && st.FatePoints >= r.MaxFatePoints
			target := charted
			if w.ChartedWeapon != "" {
				target = w.ChartedWeapon
			}
			if target != "" && r.MaxFatePoints > 0 {
				if wi.WasGuaranteed || w.ItemKey == target {
					st.FatePoints = 0
				} else {
					st.FatePoints = min(r.MaxFatePoints, st.FatePoints+1)
				}
			}
		}

		snap[banner] = st
		if w.ID != "" {
			info[w.ID] = wi
		}
	}
	return snap, info
}
