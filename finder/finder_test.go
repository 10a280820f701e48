package finder

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"duplicateimagefinder/dispatcher"
	"duplicateimagefinder/imageprocessor"
	"duplicateimagefinder/scanner"
	"duplicateimagefinder/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFingerprinter hashes by lookup; missing paths fail to decode
type stubFingerprinter struct {
	hashes map[string]uint64
	bits   int
	calls  int32
}

func (s *stubFingerprinter) Bits() int { return 64 }

func (s *stubFingerprinter) Fingerprint(ref types.ImageRef) (types.Signature, error) {
	atomic.AddInt32(&s.calls, 1)
	h, ok := s.hashes[ref.Path]
	if !ok {
		return types.Signature{}, &types.DecodeFailure{Ref: ref, Err: errors.New("corrupt header")}
	}
	bits := s.bits
	if bits == 0 {
		bits = 64
	}
	words := make([]uint64, (bits+63)/64)
	words[0] = h
	return types.Signature{Ref: ref, Bits: bits, Hash: words}, nil
}

func feed(refs ...types.ImageRef) <-chan types.ImageRef {
	ch := make(chan types.ImageRef, len(refs))
	for _, r := range refs {
		ch <- r
	}
	close(ch)
	return ch
}

func primary(path string) types.ImageRef {
	return types.ImageRef{Path: path, Origin: types.OriginPrimary}
}

func compare(path string) types.ImageRef {
	return types.ImageRef{Path: path, Origin: types.OriginCompare}
}

func testConfig() Config {
	cfg := DefaultConfig(4)
	cfg.Quiet = true
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"threshold zero", func(c *Config) { c.Threshold = 0 }, "confidence"},
		{"threshold too high", func(c *Config) { c.Threshold = 101 }, "confidence"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "cpus"},
		{"bad mode", func(c *Config) { c.Mode = dispatcher.Mode(9) }, "mode"},
		{"bad algorithm", func(c *Config) { c.Algorithm = "fourier" }, "hash"},
		{"bad hash size", func(c *Config) { c.HashSize = 10 }, "hash-size"},
	}

	require.NoError(t, testConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := New(cfg, &stubFingerprinter{})
			var cfgErr *types.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestCorruptFileAmongValidOnes(t *testing.T) {
	fp := &stubFingerprinter{hashes: map[string]uint64{
		"/p/a.jpg": 0x0000000000000000,
		"/p/b.jpg": 0x0000000000000007, // 3 bits from a: 95%
		"/p/c.jpg": 0xffffffff00000000,
		"/p/d.jpg": 0x00000000ffffffff,
	}}

	f, err := New(testConfig(), fp)
	require.NoError(t, err)

	report, err := f.Run(context.Background(), feed(
		primary("/p/a.jpg"), primary("/p/b.jpg"), primary("/p/broken.jpg"),
		primary("/p/c.jpg"), primary("/p/d.jpg"),
	))
	require.NoError(t, err)

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "/p/broken.jpg", report.Skipped[0].Ref.Path)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, []types.ImageRef{primary("/p/a.jpg"), primary("/p/b.jpg")}, report.Groups[0].Members)
	assert.Equal(t, 95, report.Groups[0].MaxConfidence)

	assert.Equal(t, types.Stats{
		ImagesSeen:    5,
		ImagesIndexed: 4,
		ImagesSkipped: 1,
		PairsCompared: 6,
		PairsRetained: 1,
	}, report.Stats)
	assert.Equal(t, 90, report.Threshold)
}

func TestInverseReportsDissimilarPairs(t *testing.T) {
	fp := &stubFingerprinter{hashes: map[string]uint64{
		"/p/a.jpg": 0,
		"/p/b.jpg": 1,
		"/p/c.jpg": ^uint64(0),
	}}
	cfg := testConfig()
	cfg.Inverse = true

	f, err := New(cfg, fp)
	require.NoError(t, err)
	report, err := f.Run(context.Background(), feed(primary("/p/a.jpg"), primary("/p/b.jpg"), primary("/p/c.jpg")))
	require.NoError(t, err)

	assert.True(t, report.Inverse)
	assert.Equal(t, 2, report.Stats.PairsRetained)
	require.Len(t, report.Groups, 1)
	assert.Len(t, report.Groups[0].Members, 3)
}

func TestCrossModeOnlyPairsAcrossOrigins(t *testing.T) {
	fp := &stubFingerprinter{hashes: map[string]uint64{
		"/p/a.jpg": 0,
		"/p/b.jpg": 0,
		"/c/a.jpg": 0,
	}}
	cfg := testConfig()
	cfg.Mode = dispatcher.ModeCross

	f, err := New(cfg, fp)
	require.NoError(t, err)
	report, err := f.Run(context.Background(), feed(primary("/p/a.jpg"), primary("/p/b.jpg"), compare("/c/a.jpg")))
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.Stats.PairsCompared)
	require.Len(t, report.Groups, 1)
	for _, p := range report.Groups[0].Pairs {
		assert.Equal(t, types.OriginPrimary, p.A.Origin)
		assert.Equal(t, types.OriginCompare, p.B.Origin)
	}
}

func TestIndexOnlySkipsComparison(t *testing.T) {
	fp := &stubFingerprinter{hashes: map[string]uint64{"/p/a.jpg": 0, "/p/b.jpg": 0}}
	cfg := testConfig()
	cfg.IndexOnly = true

	f, err := New(cfg, fp)
	require.NoError(t, err)
	report, err := f.Run(context.Background(), feed(primary("/p/a.jpg"), primary("/p/b.jpg")))
	require.NoError(t, err)

	assert.True(t, report.IndexOnly)
	assert.Empty(t, report.Groups)
	assert.Equal(t, int64(0), report.Stats.PairsCompared)
	assert.Equal(t, 2, report.Stats.ImagesIndexed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fp.calls))
}

func TestWidthMismatchIsAConfigurationError(t *testing.T) {
	fp := &stubFingerprinter{hashes: map[string]uint64{"/p/a.jpg": 0}, bits: 256}

	f, err := New(testConfig(), fp)
	require.NoError(t, err)
	report, err := f.Run(context.Background(), feed(primary("/p/a.jpg")))

	var cfgErr *types.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "hash-size", cfgErr.Field)
	assert.Nil(t, report)
}

func TestCancelledRunReturnsNoReport(t *testing.T) {
	fp := &stubFingerprinter{hashes: map[string]uint64{"/p/a.jpg": 0}}
	f, err := New(testConfig(), fp)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.Run(ctx, make(chan types.ImageRef))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
}

func writePNG(t *testing.T, path string, seed uint64) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if seed>>uint((y/8)*8+x/8)&1 == 1 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestRunOverRealImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "original.png"), 0x8f3a5c7e19b2d460)
	writePNG(t, filepath.Join(dir, "copy.png"), 0x8f3a5c7e19b2d460)
	writePNG(t, filepath.Join(dir, "touched.png"), 0x8f3a5c7e19b2d461)
	writePNG(t, filepath.Join(dir, "other.png"), 0x00000000ffffffff)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("nope"), 0o644))

	registry := imageprocessor.NewImageLoaderRegistry()
	fp, err := imageprocessor.NewFingerprinter(registry, imageprocessor.AlgorithmAverage, 8)
	require.NoError(t, err)
	f, err := New(testConfig(), fp)
	require.NoError(t, err)

	refs, wait := scanner.Stream(context.Background(), registry.CanLoadFile,
		scanner.Source{Root: dir, Origin: types.OriginPrimary})
	report, err := f.Run(context.Background(), refs)
	require.NoError(t, err)
	require.NoError(t, wait())

	require.Len(t, report.Skipped, 1)
	require.Len(t, report.Groups, 1)
	var names []string
	for _, m := range report.Groups[0].Members {
		names = append(names, filepath.Base(m.Path))
	}
	assert.Equal(t, []string{"copy.png", "original.png", "touched.png"}, names)
	assert.Equal(t, 100, report.Groups[0].MaxConfidence)
}
