package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"duplicateimagefinder/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFingerprinter struct {
	mu      sync.Mutex
	calls   map[string]int
	fail    map[string]bool
	active  int32
	maxSeen int32
	delay   time.Duration
}

func newFakeFingerprinter() *fakeFingerprinter {
	return &fakeFingerprinter{calls: map[string]int{}, fail: map[string]bool{}}
}

func (f *fakeFingerprinter) Bits() int { return 64 }

func (f *fakeFingerprinter) Fingerprint(ref types.ImageRef) (types.Signature, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		m := atomic.LoadInt32(&f.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxSeen, m, n) {
			break
		}
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	f.calls[ref.Key()]++
	fail := f.fail[ref.Path]
	f.mu.Unlock()

	if fail {
		return types.Signature{}, errors.New("corrupt")
	}
	return types.Signature{Ref: ref, Bits: 64, Hash: []uint64{uint64(len(ref.Path))}}, nil
}

func feed(refs ...types.ImageRef) <-chan types.ImageRef {
	ch := make(chan types.ImageRef, len(refs))
	for _, r := range refs {
		ch <- r
	}
	close(ch)
	return ch
}

func ref(path string, origin types.Origin) types.ImageRef {
	return types.ImageRef{Path: path, Origin: origin}
}

func TestScanBuildsSortedTable(t *testing.T) {
	fp := newFakeFingerprinter()
	fp.fail["/p/broken.jpg"] = true

	refs := feed(
		ref("/c/z.jpg", types.OriginCompare),
		ref("/p/b.jpg", types.OriginPrimary),
		ref("/p/broken.jpg", types.OriginPrimary),
		ref("/p/a.jpg", types.OriginPrimary),
		ref("/c/a.jpg", types.OriginCompare),
	)

	table, err := Scan(context.Background(), refs, fp, 3, nil)
	require.NoError(t, err)

	var got []types.ImageRef
	for _, s := range table.Signatures {
		got = append(got, s.Ref)
	}
	assert.Equal(t, []types.ImageRef{
		ref("/p/a.jpg", types.OriginPrimary),
		ref("/p/b.jpg", types.OriginPrimary),
		ref("/c/a.jpg", types.OriginCompare),
		ref("/c/z.jpg", types.OriginCompare),
	}, got)

	require.Len(t, table.Skipped, 1)
	assert.Equal(t, "/p/broken.jpg", table.Skipped[0].Ref.Path)
	assert.Equal(t, 5, table.Seen)
	assert.Len(t, table.Primary(), 2)
	assert.Len(t, table.Compare(), 2)
}

func TestScanProcessesDuplicateRefsOnce(t *testing.T) {
	fp := newFakeFingerprinter()
	refs := feed(
		ref("/p/a.jpg", types.OriginPrimary),
		ref("/p/a.jpg", types.OriginPrimary),
		ref("/p/a.jpg", types.OriginCompare),
	)

	table, err := Scan(context.Background(), refs, fp, 2, nil)
	require.NoError(t, err)
	assert.Len(t, table.Signatures, 2)
	assert.Equal(t, 2, table.Seen)
	assert.Equal(t, 1, fp.calls[ref("/p/a.jpg", types.OriginPrimary).Key()])
}

func TestScanRespectsWorkerBound(t *testing.T) {
	fp := newFakeFingerprinter()
	fp.delay = 5 * time.Millisecond

	var refs []types.ImageRef
	for i := 0; i < 40; i++ {
		refs = append(refs, ref(filepath.Join("/p", string(rune('a'+i%26)), string(rune('a'+i/26))+".jpg"), types.OriginPrimary))
	}

	table, err := Scan(context.Background(), feed(refs...), fp, 3, nil)
	require.NoError(t, err)
	assert.Len(t, table.Signatures, 40)
	assert.LessOrEqual(t, atomic.LoadInt32(&fp.maxSeen), int32(3))
}

type recordingProgress struct {
	mu      sync.Mutex
	results []ProcessImageResult
}

func (r *recordingProgress) Record(res ProcessImageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func TestScanReportsProgress(t *testing.T) {
	fp := newFakeFingerprinter()
	fp.fail["/p/bad.cr2"] = true
	progress := &recordingProgress{}

	_, err := Scan(context.Background(), feed(
		ref("/p/bad.cr2", types.OriginPrimary),
		ref("/p/ok.tif", types.OriginPrimary),
	), fp, 1, progress)
	require.NoError(t, err)

	require.Len(t, progress.results, 2)
	sort.Slice(progress.results, func(i, j int) bool {
		return progress.results[i].Ref.Path < progress.results[j].Ref.Path
	})
	assert.False(t, progress.results[0].Success)
	assert.True(t, progress.results[0].IsRaw)
	assert.True(t, progress.results[1].Success)
	assert.True(t, progress.results[1].IsTif)
}

func TestScanCancelled(t *testing.T) {
	fp := newFakeFingerprinter()
	fp.delay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	refs := make(chan types.ImageRef)
	go func() {
		for i := 0; ; i++ {
			select {
			case refs <- ref(filepath.Join("/p", string(rune('a'+i%26))+".jpg"), types.OriginPrimary):
				if i == 3 {
					cancel()
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	table, err := Scan(ctx, refs, fp, 2, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, table)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestStreamWalksSourcesAndSkipsLibraryInternals(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "nested", "b.PNG"))
	touch(t, filepath.Join(root, "My.photoslibrary", "Masters", "2019", "c.jpg"))
	touch(t, filepath.Join(root, "My.photoslibrary", "originals", "0", "d.jpg"))
	touch(t, filepath.Join(root, "My.photoslibrary", "resources", "derivatives", "c_thumb.jpg"))
	touch(t, filepath.Join(root, "My.photoslibrary", "preview.jpg"))
	touch(t, filepath.Join(other, "e.jpg"))

	canLoad := func(p string) bool {
		ext := filepath.Ext(p)
		return ext == ".jpg" || ext == ".PNG"
	}

	refs, wait := Stream(context.Background(), canLoad,
		Source{Root: root, Origin: types.OriginPrimary},
		Source{Root: other, Origin: types.OriginCompare},
	)

	var got []types.ImageRef
	for r := range refs {
		got = append(got, r)
	}
	require.NoError(t, wait())

	assert.ElementsMatch(t, []types.ImageRef{
		ref(filepath.Join(root, "a.jpg"), types.OriginPrimary),
		ref(filepath.Join(root, "nested", "b.PNG"), types.OriginPrimary),
		ref(filepath.Join(root, "My.photoslibrary", "Masters", "2019", "c.jpg"), types.OriginPrimary),
		ref(filepath.Join(root, "My.photoslibrary", "originals", "0", "d.jpg"), types.OriginPrimary),
		ref(filepath.Join(other, "e.jpg"), types.OriginCompare),
	}, got)
}

func TestStreamReportsMissingRoot(t *testing.T) {
	refs, wait := Stream(context.Background(), func(string) bool { return true },
		Source{Root: filepath.Join(t.TempDir(), "missing"), Origin: types.OriginPrimary})

	for range refs {
	}
	assert.Error(t, wait())
}

func TestProgressTrackerCounts(t *testing.T) {
	tracker := NewProgressTracker("test", 3, true)
	tracker.Record(ProcessImageResult{Ref: ref("/a.cr2", types.OriginPrimary), Success: true, IsRaw: true})
	tracker.Record(ProcessImageResult{Ref: ref("/b.jpg", types.OriginPrimary), Error: errors.New("bad")})
	tracker.Increment()
	tracker.Stop()

	assert.Equal(t, 3, tracker.Processed())
	assert.Equal(t, 1, tracker.errors)
	assert.Equal(t, 1, tracker.rawProcessed)

	var nilTracker *ProgressTracker
	nilTracker.Record(ProcessImageResult{})
	assert.Equal(t, 0, nilTracker.Processed())
}
