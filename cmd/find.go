package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duplicateimagefinder/database"
	"duplicateimagefinder/dispatcher"
	"duplicateimagefinder/finder"
	"duplicateimagefinder/imageprocessor"
	"duplicateimagefinder/logging"
	"duplicateimagefinder/output"
	"duplicateimagefinder/scanner"
	"duplicateimagefinder/types"
	"duplicateimagefinder/utils"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// refSource starts producing refs and returns a function reporting how the
// production ended
type refSource func(ctx context.Context) (<-chan types.ImageRef, func() error)

// runFind wires the image sources, the finder and the output format
func runFind(cmd *cobra.Command, opts Options) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	format, err := output.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	algorithm, err := imageprocessor.ParseAlgorithm(opts.Hash)
	if err != nil {
		return err
	}

	cfg := finder.Config{
		Threshold: opts.Confidence,
		Workers:   opts.CPUs,
		Mode:      dispatcher.ModeSelf,
		Inverse:   opts.Inverse,
		IndexOnly: opts.IndexOnly,
		Algorithm: algorithm,
		HashSize:  opts.HashSize,
		Quiet:     opts.Quiet,
	}
	if opts.Compare != "" {
		cfg.Mode = dispatcher.ModeCross
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	registry := imageprocessor.NewImageLoaderRegistry()
	fp, err := imageprocessor.NewFingerprinter(registry, cfg.Algorithm, cfg.HashSize)
	if err != nil {
		return err
	}
	f, err := finder.New(cfg, fp)
	if err != nil {
		return err
	}

	primary, err := primarySource(cmd, opts, registry.CanLoadFile)
	if err != nil {
		return err
	}
	sources := []refSource{primary}
	if opts.Compare != "" {
		sources = append(sources, directorySource(opts.Compare, types.OriginCompare, registry.CanLoadFile))
	}

	logging.DebugLog("Running with %+v", cfg)
	start := time.Now()

	refs, wait := concatSources(ctx, sources...)
	report, runErr := f.Run(ctx, refs)
	walkErr := wait()

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("interrupted, no results were produced")
		}
		return runErr
	}
	if walkErr != nil {
		return walkErr
	}

	logging.LogInfo("Finished in %v", time.Since(start).Round(time.Millisecond))
	return output.Write(cmd.OutOrStdout(), format, report)
}

// primarySource picks the Photos library or the directory to scan
func primarySource(cmd *cobra.Command, opts Options, canLoad func(string) bool) (refSource, error) {
	if !opts.OSXPhotos && opts.Library == "" {
		return directorySource(opts.Directory, types.OriginPrimary, canLoad), nil
	}

	path := opts.Library
	if path == "" {
		libraries, err := utils.FindPhotosLibraries(utils.GetDefaultPicturesDir())
		if err != nil {
			return nil, fmt.Errorf("looking for Photos libraries: %w", err)
		}
		path, err = utils.ChooseLibrary(libraries, cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
	}

	lib, err := database.OpenPhotosLibrary(path)
	if err != nil {
		return nil, err
	}
	if !opts.Quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Scanning Photos library %s\n", lib.Path)
	}
	return func(ctx context.Context) (<-chan types.ImageRef, func() error) {
		return lib.Stream(ctx, canLoad, types.OriginPrimary)
	}, nil
}

func directorySource(root string, origin types.Origin, canLoad func(string) bool) refSource {
	return func(ctx context.Context) (<-chan types.ImageRef, func() error) {
		return scanner.Stream(ctx, canLoad, scanner.Source{Root: root, Origin: origin})
	}
}

// concatSources runs the sources one after another into a single channel
func concatSources(ctx context.Context, sources ...refSource) (<-chan types.ImageRef, func() error) {
	out := make(chan types.ImageRef)

	var g errgroup.Group
	g.Go(func() error {
		defer close(out)
		for _, src := range sources {
			refs, wait := src(ctx)
			for ref := range refs {
				select {
				case out <- ref:
				case <-ctx.Done():
					// unblock the producer before waiting on it
					for range refs {
					}
					return ctx.Err()
				}
			}
			if err := wait(); err != nil {
				return err
			}
		}
		return nil
	})

	return out, g.Wait
}
