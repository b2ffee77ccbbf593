package gacha

import (
	"errors"
	"strings"
)

var (
	ErrInvalidProb = errors.New("invalid probability p; must be 0..1")
	// ErrConfig is the kind of every banner rule validation failure.
	ErrConfig = errors.New("invalid banner rules")
)

// ConfigError collects every problem found in one BannerRules value, or in
// run settings when Banner is empty.
type ConfigError struct {
	Banner   BannerType
	Problems []string
}

func (e *ConfigError) Error() string {
	prefix := "config"
	if e.Banner != "" {
		prefix = string(e.Banner) + " banner rules"
	}
	return prefix + ": " + strings.Join(e.Problems, "; ")
}

func (e *ConfigError) Unwrap() error { return ErrConfig }
