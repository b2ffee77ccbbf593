// Package ledger turns stored resource records into the pull budget the
// simulator consumes.
package ledger

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/token"
)

// Source tags where a primogem change came from.
type Source string

const (
	SourceDailyCommission Source = "daily_commission"
	SourceWelkin          Source = "welkin"
	SourceEvent           Source = "event"
	SourceExploration     Source = "exploration"
	SourceAbyss           Source = "abyss"
	SourceQuest           Source = "quest"
	SourceAchievement     Source = "achievement"
	SourceMaintenance     Source = "maintenance"
	SourceCodes           Source = "codes"
	SourceBattlePass      Source = "battle_pass"
	SourcePurchase        Source = "purchase"
	SourceWishConversion  Source = "wish_conversion"
	SourceCosmetic        Source = "cosmetic"
	SourceOther           Source = "other"
)

var Sources = []Source{
	SourceDailyCommission, SourceWelkin, SourceEvent, SourceExploration, SourceAbyss, SourceQuest,
	SourceAchievement, SourceMaintenance, SourceCodes, SourceBattlePass, SourcePurchase,
	SourceWishConversion, SourceCosmetic, SourceOther,
}

func (s Source) Valid() bool { return slices.Contains(Sources, s) }

// Spending reports whether entries from s are non-wish spending (negative amounts).
func (s Source) Spending() bool { return s == SourceCosmetic }

// FateType is a kind of wish item.
type FateType string

const (
	FateIntertwined FateType = "intertwined"
	FateAcquaint    FateType = "acquaint"
)

// FateFor returns the fate a banner consumes.
func FateFor(b gacha.BannerType) FateType {
	if b == gacha.BannerStandard {
		return FateAcquaint
	}
	return FateIntertwined
}

var ErrInvalidEntry = errors.New("invalid ledger entry")

// Snapshot is a full count of currencies at one instant.
type Snapshot struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	token.Wallet
}

type PrimogemEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Amount    int       `json:"amount"`
	Source    Source    `json:"source"`
	Note      string    `json:"note,omitempty"`
}

func (e PrimogemEntry) Validate() error {
	if !e.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidEntry, e.Source)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEntry)
	}
	return nil
}

type FateEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	FateType  FateType  `json:"fateType"`
	Amount    int       `json:"amount"`
	Source    string    `json:"source,omitempty"`
}

func (e FateEntry) Validate() error {
	if e.FateType != FateIntertwined && e.FateType != FateAcquaint {
		return fmt.Errorf("%w: unknown fate type %q", ErrInvalidEntry, e.FateType)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEntry)
	}
	return nil
}

// Spending is the cost of the wishes made after some instant.
type Spending struct {
	TotalPulls         int              `json:"totalPulls"`
	PrimogemEquivalent int              `json:"primogemEquivalent"`
	ByFate             map[FateType]int `json:"pullsByFate"`
}

// WishSpending counts wishes strictly after since; a zero since counts all.
func WishSpending(wishes []gacha.Wish, since time.Time, rate token.Token) Spending {
	sp := Spending{ByFate: map[FateType]int{FateIntertwined: 0, FateAcquaint: 0}}
	for _, w := range wishes {
		if !since.IsZero() && !w.Timestamp.After(since) {
			continue
		}
		sp.ByFate[FateFor(w.Banner)]++
		sp.TotalPulls++
	}
	sp.PrimogemEquivalent = rate.TokensForDraws(sp.TotalPulls)
	return sp
}

// Available is the current stock of currencies and its pull equivalent.
type Available struct {
	Pulls     int          `json:"availablePulls"`
	Resources token.Wallet `json:"resources"`
}

// Records is everything the ledger needs to compute a budget.
type Records struct {
	Snapshot  *Snapshot // latest; nil when none was taken
	Primogems []PrimogemEntry
	Fates     []FateEntry
	Wishes    []gacha.Wish
}

// AvailablePulls adds the entries recorded after the latest snapshot (up to
// now) to it and subtracts the wishes made since, paying for each from the
// matching fate first and from primogems when fates run out. Without a snapshot every
// entry counts from zero and wishes are assumed already reflected.
// Balances are clamped at zero.
func AvailablePulls(r Records, rates token.Rates, now time.Time) Available {
	var base token.Wallet
	var since time.Time
	if r.Snapshot != nil {
		base = r.Snapshot.Wallet
		since = r.Snapshot.Timestamp
	}
	inWindow := func(ts time.Time) bool {
		if r.Snapshot == nil {
			return true
		}
		return !ts.Before(since) && !ts.After(now)
	}

	res := base
	for _, e := range r.Primogems {
		if inWindow(e.Timestamp) {
			res.Primogems += e.Amount
		}
	}
	for _, e := range r.Fates {
		if !inWindow(e.Timestamp) {
			continue
		}
		switch e.FateType {
		case FateIntertwined:
			res.Intertwined += e.Amount
		case FateAcquaint:
			res.Acquaint += e.Amount
		}
	}
	if r.Snapshot != nil {
		// a wish spends a fate; fates bought on the spot come out of primogems
		sp := WishSpending(r.Wishes, since, rates.Primogem)
		res.Intertwined -= sp.ByFate[FateIntertwined]
		res.Acquaint -= sp.ByFate[FateAcquaint]
		short := max(0, -res.Intertwined) + max(0, -res.Acquaint)
		res.Primogems -= rates.Primogem.TokensForDraws(short)
	}

	res = res.Clamp()
	return Available{Pulls: rates.Pulls(res), Resources: res}
}
