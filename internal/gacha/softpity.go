package gacha

// Curve is the 5-star rate ramp shared by every banner type.
// Example: SoftPityStart=73, HardPity=90 → pulls 74..89 ramp, pull 90 always hits.
type Curve struct {
	SoftPityStart        int
	HardPity             int
	BaseRate             float64
	SoftPityRateIncrease float64
}

// Rate returns the 5-star probability for the pull made with pity pulls
// already behind it (the pull about to happen is number pity+1):
// - pity+1 >= HardPity: 1
// - pity >= SoftPityStart: base + inc*(pity-SoftPityStart+1), clamped to 1
// - otherwise: base
func (c Curve) Rate(pity int) float64 {
	if pity+1 >= c.HardPity {
		return 1.0
	}
	if pity < c.SoftPityStart {
		return c.BaseRate
	}
	p := c.BaseRate + c.SoftPityRateIncrease*float64(pity-c.SoftPityStart+1)
	if p > 1 {
		p = 1
	}
	return p
}
