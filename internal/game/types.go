// types.go
package game

// RawConfig is one layer of banner rules as written in YAML. Nil fields are
// inherited from the layer below.
type RawConfig struct {
	Version  string          `yaml:"version"`
	Pity     PityConfig      `yaml:"pity"`
	Radiance *RadianceConfig `yaml:"capturing_radiance,omitempty"`
	Fate     *FateConfig     `yaml:"fate_points,omitempty"`
	Tokens   *TokenConfig    `yaml:"tokens,omitempty"`
	Notes    string          `yaml:"notes,omitempty"`
}

type PityConfig struct {
	SoftStart    *int     `yaml:"soft_pity_start"`
	Hard         *int     `yaml:"hard_pity"`
	BaseRate     *float64 `yaml:"base_rate"`
	RateIncrease *float64 `yaml:"soft_pity_rate_increase"`
}
type RadianceConfig struct {
	Enabled   *bool `yaml:"enabled"`
	Threshold *int  `yaml:"threshold,omitempty"`
}
type FateConfig struct {
	Enabled *bool `yaml:"enabled"`
	Max     *int  `yaml:"max,omitempty"`
}
type TokenConfig struct {
	PerPull            *int `yaml:"per_pull"`             // primogems per pull
	StarglitterPerPull *int `yaml:"starglitter_per_pull"` // starglitter per pull
}
