package gacha

import "fmt"

// BannerType names one of the wish pools; each keeps its own pity counter.
type BannerType string

const (
	BannerCharacter  BannerType = "character"
	BannerWeapon     BannerType = "weapon"
	BannerStandard   BannerType = "standard"
	BannerChronicled BannerType = "chronicled"
)

// BannerTypes lists every banner type in a stable order.
var BannerTypes = []BannerType{BannerCharacter, BannerWeapon, BannerStandard, BannerChronicled}

// ParseBannerType accepts the lower-case names; "" means character.
func ParseBannerType(s string) (BannerType, error) {
	switch BannerType(s) {
	case "":
		return BannerCharacter, nil
	case BannerCharacter, BannerWeapon, BannerStandard, BannerChronicled:
		return BannerType(s), nil
	}
	return "", fmt.Errorf("unknown banner type %q", s)
}

// BannerRules is the flat, serialisable shape of one banner's rules.
// Compile turns it into one of the Rules variants.
type BannerRules struct {
	Version              string  `json:"version,omitempty" yaml:"version,omitempty"`
	SoftPityStart        int     `json:"softPityStart" yaml:"soft_pity_start"`
	HardPity             int     `json:"hardPity" yaml:"hard_pity"`
	BaseRate             float64 `json:"baseRate" yaml:"base_rate"`
	SoftPityRateIncrease float64 `json:"softPityRateIncrease" yaml:"soft_pity_rate_increase"`
	HasCapturingRadiance bool    `json:"hasCapturingRadiance,omitempty" yaml:"has_capturing_radiance,omitempty"`
	RadianceThreshold    int     `json:"radianceThreshold,omitempty" yaml:"radiance_threshold,omitempty"`
	HasFatePoints        bool    `json:"hasFatePoints,omitempty" yaml:"has_fate_points,omitempty"`
	MaxFatePoints        int     `json:"maxFatePoints,omitempty" yaml:"max_fate_points,omitempty"`
}

// Rules is the compiled, validated form of BannerRules. The concrete type
// decides how a 5-star resolves into featured or not, so fate points can only
// be reached through WeaponRules and radiance only through CharacterRules.
type Rules interface {
	Banner() BannerType
	Curve() Curve
	Version() string

	// featured reports the chance that a 5-star drawn from s is the featured
	// item, the follow-up states for a win and a loss, and whether a win
	// fires radiance. s.Pity is already reset.
	featured(s State) (p float64, win, lose State, radiance bool)
}

// CharacterRules: 50/50 with a carried guarantee and optional Capturing Radiance.
type CharacterRules struct {
	curve             Curve
	version           string
	Radiance          bool
	RadianceThreshold int
}

// ChronicledRules: 50/50 with a carried guarantee, no radiance.
type ChronicledRules struct {
	curve   Curve
	version string
}

// WeaponRules: 50/50 backed by a fate-point counter instead of a flag.
type WeaponRules struct {
	curve         Curve
	version       string
	MaxFatePoints int
}

// StandardRules: no featured pool; every 5-star counts.
type StandardRules struct {
	curve   Curve
	version string
}

func (r CharacterRules) Banner() BannerType  { return BannerCharacter }
func (r CharacterRules) Curve() Curve        { return r.curve }
func (r CharacterRules) Version() string     { return r.version }
func (r ChronicledRules) Banner() BannerType { return BannerChronicled }
func (r ChronicledRules) Curve() Curve       { return r.curve }
func (r ChronicledRules) Version() string    { return r.version }
func (r WeaponRules) Banner() BannerType     { return BannerWeapon }
func (r WeaponRules) Curve() Curve           { return r.curve }
func (r WeaponRules) Version() string        { return r.version }
func (r StandardRules) Banner() BannerType   { return BannerStandard }
func (r StandardRules) Curve() Curve         { return r.curve }
func (r StandardRules) Version() string      { return r.version }

// Compile validates br for the given banner type and returns its variant.
// Flags that do not belong to the banner type are rejected.
func Compile(banner BannerType, br BannerRules) (Rules, error) {
	problems := validateRules(banner, br)
	if len(problems) > 0 {
		return nil, &ConfigError{Banner: banner, Problems: problems}
	}
	c := Curve{
		SoftPityStart:        br.SoftPityStart,
		HardPity:             br.HardPity,
		BaseRate:             br.BaseRate,
		SoftPityRateIncrease: br.SoftPityRateIncrease,
	}
	switch banner {
	case BannerCharacter:
		return CharacterRules{curve: c, version: br.Version, Radiance: br.HasCapturingRadiance, RadianceThreshold: br.RadianceThreshold}, nil
	case BannerChronicled:
		return ChronicledRules{curve: c, version: br.Version}, nil
	case BannerWeapon:
		maxFP := br.MaxFatePoints
		if !br.HasFatePoints {
			maxFP = 0
		}
		return WeaponRules{curve: c, version: br.Version, MaxFatePoints: maxFP}, nil
	default:
		return StandardRules{curve: c, version: br.Version}, nil
	}
}

// MustCompile is Compile for static tables; it panics on invalid rules.
func MustCompile(banner BannerType, br BannerRules) Rules {
	r, err := Compile(banner, br)
	if err != nil {
		panic(err)
	}
	return r
}

// Table maps each banner type to its compiled rules.
type Table map[BannerType]Rules

// DefaultRules is the 5.0+ rule set.
func DefaultRules() map[BannerType]BannerRules {
	return map[BannerType]BannerRules{
		BannerCharacter: {
			Version: "5.0+", SoftPityStart: 73, HardPity: 90, BaseRate: 0.006, SoftPityRateIncrease: 0.06,
			HasCapturingRadiance: true, RadianceThreshold: 3,
		},
		BannerWeapon: {
			Version: "5.0+", SoftPityStart: 62, HardPity: 77, BaseRate: 0.007, SoftPityRateIncrease: 0.07,
			HasFatePoints: true, MaxFatePoints: 2,
		},
		BannerStandard: {
			Version: "1.0+", SoftPityStart: 73, HardPity: 90, BaseRate: 0.006, SoftPityRateIncrease: 0.06,
		},
		BannerChronicled: {
			Version: "4.5+", SoftPityStart: 73, HardPity: 90, BaseRate: 0.006, SoftPityRateIncrease: 0.06,
		},
	}
}

// CompileTable compiles every entry; the first invalid banner aborts.
func CompileTable(raw map[BannerType]BannerRules) (Table, error) {
	t := make(Table, len(raw))
	for _, b := range BannerTypes {
		br, ok := raw[b]
		if !ok {
			continue
		}
		r, err := Compile(b, br)
		if err != nil {
			return nil, err
		}
		t[b] = r
	}
	return t, nil
}

// DefaultTable compiles DefaultRules.
func DefaultTable() Table {
	t, err := CompileTable(DefaultRules())
	if err != nil {
		panic(err)
	}
	return t
}
