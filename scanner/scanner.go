package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"duplicateimagefinder/imageprocessor"
	"duplicateimagefinder/logging"
	"duplicateimagefinder/types"

	"golang.org/x/sync/errgroup"
)

// Source is a directory to walk and the origin its images are tagged with
type Source struct {
	Root   string
	Origin types.Origin
}

type scanResult struct {
	ref types.ImageRef
	sig types.Signature
	err error
}

// Scan fingerprints every ref received on refs with a bounded pool of
// workers and returns the signature table. Refs seen twice are processed
// once. Per image failures land in Table.Skipped; only cancellation aborts
// the scan, in which case no table is returned.
func Scan(ctx context.Context, refs <-chan types.ImageRef, fp Fingerprinter, workers int, progress Progress) (*Table, error) {
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan types.ImageRef, workers)
	results := make(chan scanResult, workers*2)
	g, gctx := errgroup.WithContext(ctx)

	seen := 0
	g.Go(func() error {
		defer close(jobs)
		keys := make(map[string]struct{})
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case ref, ok := <-refs:
				if !ok {
					return nil
				}
				if _, dup := keys[ref.Key()]; dup {
					logging.DebugLog("Ignoring duplicate reference to %s", ref.Path)
					continue
				}
				keys[ref.Key()] = struct{}{}
				seen++

				select {
				case jobs <- ref:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for ref := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				sig, err := fp.Fingerprint(ref)
				select {
				case results <- scanResult{ref: ref, sig: sig, err: err}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	table := &Table{}
	for res := range results {
		outcome := ProcessImageResult{
			Ref:     res.ref,
			Success: res.err == nil,
			Error:   res.err,
			IsRaw:   imageprocessor.IsRawFormat(res.ref.Path),
			IsTif:   imageprocessor.IsTiffFormat(res.ref.Path),
		}
		if progress != nil {
			progress.Record(outcome)
		}

		if res.err != nil {
			table.Skipped = append(table.Skipped, asDecodeFailure(res.ref, res.err))
			continue
		}
		table.Signatures = append(table.Signatures, res.sig)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table.Seen = seen
	sort.Slice(table.Signatures, func(i, j int) bool {
		return lessByOrigin(table.Signatures[i].Ref, table.Signatures[j].Ref)
	})
	sort.Slice(table.Skipped, func(i, j int) bool {
		return lessByOrigin(table.Skipped[i].Ref, table.Skipped[j].Ref)
	})
	return table, nil
}

func asDecodeFailure(ref types.ImageRef, err error) *types.DecodeFailure {
	var df *types.DecodeFailure
	if errors.As(err, &df) {
		return df
	}
	return &types.DecodeFailure{Ref: ref, Err: err}
}

// lessByOrigin orders primary refs before compare refs, then by path
func lessByOrigin(a, b types.ImageRef) bool {
	if a.Origin != b.Origin {
		return a.Origin == types.OriginPrimary
	}
	return a.Path < b.Path
}

// Stream walks the sources one after another on a new goroutine and sends
// a ref for every file canLoad accepts. The channel is closed when all walks
// end; the returned function then reports the first walk error.
func Stream(ctx context.Context, canLoad func(string) bool, sources ...Source) (<-chan types.ImageRef, func() error) {
	out := make(chan types.ImageRef, 64)

	var g errgroup.Group
	g.Go(func() error {
		defer close(out)
		for _, src := range sources {
			if err := WalkDirectory(ctx, src.Root, src.Origin, canLoad, out); err != nil {
				return err
			}
		}
		return nil
	})

	return out, g.Wait
}

// WalkDirectory traverses root and sends every loadable image below it.
// Inside a Photos library bundle only the originals folder is visited.
// Unreadable subdirectories are logged and skipped.
func WalkDirectory(ctx context.Context, root string, origin types.Origin, canLoad func(string) bool, out chan<- types.ImageRef) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("cannot read directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	logging.DebugLog("Walking %s as %s", abs, origin)

	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == abs {
				return err
			}
			logging.LogWarning("Error accessing path %s: %v", path, err)
			return nil
		}

		if d.IsDir() {
			if path != abs && skipLibraryDir(path) {
				return filepath.SkipDir
			}
			return nil
		}

		dir := filepath.Dir(path)
		if skipLibraryDir(dir) || strings.HasSuffix(dir, ".photoslibrary") {
			return nil
		}
		if !canLoad(path) {
			return nil
		}

		select {
		case out <- types.ImageRef{Path: path, Origin: origin}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
