package finder

import (
	"fmt"

	"duplicateimagefinder/dispatcher"
	"duplicateimagefinder/imageprocessor"
	"duplicateimagefinder/types"
)

// DefaultThreshold is the confidence a pair needs to be reported
const DefaultThreshold = 90

// Config holds the settings of one run. It is passed by value and never
// changes once the run starts.
type Config struct {
	Threshold int
	Workers   int
	Mode      dispatcher.Mode
	Inverse   bool
	IndexOnly bool
	Algorithm imageprocessor.Algorithm
	HashSize  int
	Quiet     bool
}

// DefaultConfig returns the settings used when nothing is overridden
func DefaultConfig(workers int) Config {
	return Config{
		Threshold: DefaultThreshold,
		Workers:   workers,
		Mode:      dispatcher.ModeSelf,
		Algorithm: imageprocessor.DefaultAlgorithm,
		HashSize:  imageprocessor.DefaultHashSize,
	}
}

// Validate checks every field and returns a *types.ConfigurationError for
// the first invalid one
func (c Config) Validate() error {
	if c.Threshold < 1 || c.Threshold > 100 {
		return &types.ConfigurationError{
			Field:  "confidence",
			Reason: fmt.Sprintf("must be between 1 and 100, got %d", c.Threshold),
		}
	}
	if c.Workers < 1 {
		return &types.ConfigurationError{
			Field:  "cpus",
			Reason: fmt.Sprintf("must be at least 1, got %d", c.Workers),
		}
	}
	if c.Mode != dispatcher.ModeSelf && c.Mode != dispatcher.ModeCross {
		return &types.ConfigurationError{
			Field:  "mode",
			Reason: fmt.Sprintf("unknown comparison mode %d", int(c.Mode)),
		}
	}
	if _, err := imageprocessor.ParseAlgorithm(string(c.Algorithm)); err != nil {
		return err
	}
	return imageprocessor.ValidateHashSize(c.HashSize)
}
