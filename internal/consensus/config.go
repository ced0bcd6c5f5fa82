package consensus

import (
	"time"

	"bidflow/internal/config"
)

// Config holds the thresholds of a consensus round.
type Config struct {
	// MinRoster is the smallest roster an Engine accepts.
	MinRoster int
	// MinSuccessful is the number of models that must produce a usable result.
	MinSuccessful int
	// DescriptionThreshold is the token Dice needed to match items of the same category.
	DescriptionThreshold float64
	// CrossCategoryThreshold is the token Dice needed when two models chose different categories.
	CrossCategoryThreshold float64
	IoUThreshold           float64
	LocationThreshold      float64
	// NumericTolerance is the relative spread above which numeric values disagree.
	NumericTolerance float64
	ModelTimeout     time.Duration
	// MaxParallel bounds concurrent model calls. Zero means the roster size.
	MaxParallel int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MinRoster:              5,
		MinSuccessful:          2,
		DescriptionThreshold:   0.6,
		CrossCategoryThreshold: 0.8,
		IoUThreshold:           0.3,
		LocationThreshold:      0.5,
		NumericTolerance:       0.15,
		ModelTimeout:           120 * time.Second,
	}
}

// FromConfig fills a Config from application settings, keeping defaults for zero values.
func FromConfig(c config.ConsensusConfig) Config {
	cfg := DefaultConfig()
	if c.MinRoster > 0 {
		cfg.MinRoster = c.MinRoster
	}
	if c.MinSuccessful > 0 {
		cfg.MinSuccessful = c.MinSuccessful
	}
	if c.DescriptionThreshold > 0 {
		cfg.DescriptionThreshold = c.DescriptionThreshold
	}
	if c.CrossCategoryThreshold > 0 {
		cfg.CrossCategoryThreshold = c.CrossCategoryThreshold
	}
	if c.IoUThreshold > 0 {
		cfg.IoUThreshold = c.IoUThreshold
	}
	if c.LocationThreshold > 0 {
		cfg.LocationThreshold = c.LocationThreshold
	}
	if c.NumericTolerance > 0 {
		cfg.NumericTolerance = c.NumericTolerance
	}
	if c.ModelTimeoutSecs > 0 {
		cfg.ModelTimeout = time.Duration(c.ModelTimeoutSecs) * time.Second
	}
	cfg.MaxParallel = c.MaxParallel
	return cfg
}
