// Package finder runs the two stage duplicate search: fingerprint every
// image, then score candidate pairs and group the matches.
package finder

import (
	"context"
	"fmt"

	"duplicateimagefinder/aggregator"
	"duplicateimagefinder/dispatcher"
	"duplicateimagefinder/imageprocessor"
	"duplicateimagefinder/logging"
	"duplicateimagefinder/scanner"
	"duplicateimagefinder/types"
)

// Finder holds a validated configuration and the fingerprinter it drives
type Finder struct {
	cfg Config
	fp  scanner.Fingerprinter
}

// New validates cfg and creates a finder. A nil fingerprinter is replaced
// by one over every loader available on this machine.
func New(cfg Config, fp scanner.Fingerprinter) (*Finder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fp == nil {
		var err error
		fp, err = imageprocessor.NewFingerprinter(imageprocessor.NewImageLoaderRegistry(), cfg.Algorithm, cfg.HashSize)
		if err != nil {
			return nil, err
		}
	}
	return &Finder{cfg: cfg, fp: fp}, nil
}

// Config returns the run configuration
func (f *Finder) Config() Config {
	return f.cfg
}

// Run consumes refs until the channel closes and returns the report. When
// ctx is cancelled it returns the context error and no report.
func (f *Finder) Run(ctx context.Context, refs <-chan types.ImageRef) (*types.Report, error) {
	report := &types.Report{
		Threshold: f.cfg.Threshold,
		Inverse:   f.cfg.Inverse,
		IndexOnly: f.cfg.IndexOnly,
	}

	hashing := scanner.NewProgressTracker("Hashing images", -1, f.cfg.Quiet)
	table, err := scanner.Scan(ctx, refs, f.fp, f.cfg.Workers, hashing)
	hashing.Stop()
	if err != nil {
		return nil, err
	}

	if err := checkWidths(table, f.fp.Bits()); err != nil {
		return nil, err
	}

	report.Skipped = table.Skipped
	report.Stats.ImagesSeen = table.Seen
	report.Stats.ImagesIndexed = len(table.Signatures)
	report.Stats.ImagesSkipped = len(table.Skipped)
	logging.LogInfo("Indexed %d of %d images, %d skipped", report.Stats.ImagesIndexed, table.Seen, len(table.Skipped))

	if f.cfg.IndexOnly {
		return report, nil
	}

	it := pairsFor(f.cfg.Mode, table)
	agg := aggregator.New(f.cfg.Threshold, f.cfg.Inverse)

	comparing := scanner.NewProgressTracker("Comparing images", it.Len(), f.cfg.Quiet)
	d := dispatcher.New(f.cfg.Workers)
	d.Progress = comparing
	compared, err := d.Run(ctx, it, agg)
	comparing.Stop()
	if err != nil {
		return nil, err
	}

	groups, err := agg.Finalize()
	if err != nil {
		return nil, err
	}

	report.Groups = groups
	report.ComparisonFailures = agg.Failures()
	report.Stats.PairsCompared = compared
	report.Stats.PairsRetained = agg.Retained()
	report.Stats.ComparisonFailures = len(report.ComparisonFailures)
	logging.LogInfo("Compared %d pairs, %d retained in %d groups", compared, agg.Retained(), len(groups))
	return report, nil
}

func pairsFor(mode dispatcher.Mode, table *scanner.Table) dispatcher.PairIterator {
	if mode == dispatcher.ModeCross {
		return dispatcher.NewCrossPairs(table.Primary(), table.Compare())
	}
	return dispatcher.NewSelfPairs(table.Signatures)
}

// checkWidths refuses tables mixing signature widths, which can only be
// compared meaninglessly
func checkWidths(table *scanner.Table, bits int) error {
	for _, s := range table.Signatures {
		if s.Bits != bits {
			return &types.ConfigurationError{
				Field:  "hash-size",
				Reason: fmt.Sprintf("signature of %s has %d bits, expected %d", s.Ref.Path, s.Bits, bits),
			}
		}
	}
	return nil
}
