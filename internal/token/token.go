package token

// Token defines how many units of a currency are required per pull.
type Token struct {
	Name       string // e.g. "Primogem", "Masterless Starglitter"
	PerDraw    int    // units per single pull, e.g. 160
	PerTenDraw int    // optional; if 0 -> equal to 10 * PerDraw
}

var (
	Primogem    = Token{Name: "Primogem", PerDraw: 160}
	Starglitter = Token{Name: "Masterless Starglitter", PerDraw: 5}
)

// TokensForDraws returns how many units are required for n pulls.
func (t Token) TokensForDraws(n int) int {
	if n <= 0 {
		return 0
	}
	if t.PerTenDraw > 0 && n >= 10 {
		tens := n / 10
		rem := n % 10
		return tens*t.PerTenDraw + rem*t.PerDraw
	}
	return n * t.PerDraw
}

// DrawsFor returns how many whole pulls units buy.
func (t Token) DrawsFor(units int) int {
	if units <= 0 || t.PerDraw <= 0 {
		return 0
	}
	n := units / t.PerDraw
	// a ten-pull discount can stretch the remainder further
	if t.PerTenDraw > 0 && t.PerTenDraw < 10*t.PerDraw {
		tens := units / t.PerTenDraw
		rem := units - tens*t.PerTenDraw
		n = max(n, tens*10+rem/t.PerDraw)
	}
	return n
}

// Rates holds the conversions used when turning a wallet into pulls.
// Primogems and Genesis Crystals share one rate.
type Rates struct {
	Primogem    Token
	Starglitter Token
}

func DefaultRates() Rates {
	return Rates{Primogem: Primogem, Starglitter: Starglitter}
}

// Wallet is a stock of wish currencies.
type Wallet struct {
	Primogems       int `json:"primogems" yaml:"primogems"`
	GenesisCrystals int `json:"genesisCrystals" yaml:"genesis_crystals"`
	Intertwined     int `json:"intertwined" yaml:"intertwined"`
	Acquaint        int `json:"acquaint" yaml:"acquaint"`
	Starglitter     int `json:"starglitter" yaml:"starglitter"`
}

// Clamp returns w with every negative balance raised to zero.
func (w Wallet) Clamp() Wallet {
	return Wallet{
		Primogems:       max(0, w.Primogems),
		GenesisCrystals: max(0, w.GenesisCrystals),
		Intertwined:     max(0, w.Intertwined),
		Acquaint:        max(0, w.Acquaint),
		Starglitter:     max(0, w.Starglitter),
	}
}

// Pulls converts w into whole pulls:
// (primogems+genesis)/perPull + intertwined + acquaint + starglitter/perStarglitterPull.
func (r Rates) Pulls(w Wallet) int {
	w = w.Clamp()
	return r.Primogem.DrawsFor(w.Primogems+w.GenesisCrystals) +
		w.Intertwined + w.Acquaint +
		r.Starglitter.DrawsFor(w.Starglitter)
}
