package scanner

import (
	"io"
	"os"
	"sync"
	"time"

	"duplicateimagefinder/logging"

	"github.com/schollz/progressbar/v3"
)

// ProgressTracker tracks progress of a stage on a terminal progress bar
type ProgressTracker struct {
	processed    int
	errors       int
	rawProcessed int
	rawErrors    int
	tifProcessed int
	tifErrors    int
	started      time.Time
	bar          *progressbar.ProgressBar
	mu           sync.Mutex
}

// NewProgressTracker creates a tracker; total may be -1 when unknown.
// A quiet tracker still counts but draws nothing.
func NewProgressTracker(description string, total int64, quiet bool) *ProgressTracker {
	var w io.Writer = os.Stderr
	if quiet {
		w = io.Discard
	}

	return &ProgressTracker{
		started: time.Now(),
		bar: progressbar.NewOptions64(total,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(w),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("img"),
			progressbar.OptionThrottle(100*time.Millisecond),
		),
	}
}

// Record updates the tracker state based on one processing result
func (p *ProgressTracker) Record(result ProcessImageResult) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed++
	if result.IsRaw {
		p.rawProcessed++
	}
	if result.IsTif {
		p.tifProcessed++
	}

	if !result.Success {
		p.errors++
		if result.IsRaw {
			p.rawErrors++
		}
		if result.IsTif {
			p.tifErrors++
		}
		if result.Error != nil {
			logging.LogImageProcessed(result.Ref.Path, false, result.Error.Error())
		}
	} else {
		logging.LogImageProcessed(result.Ref.Path, true, "")
	}

	_ = p.bar.Add(1)
}

// Increment advances the bar without classifying a result
func (p *ProgressTracker) Increment() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed++
	_ = p.bar.Add(1)
}

// Processed returns the number of results recorded so far
func (p *ProgressTracker) Processed() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed
}

// Stop finishes the bar and logs final statistics
func (p *ProgressTracker) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.bar.Finish()
	logging.DebugLog("Stage finished in %v. Processed: %d, Errors: %d, RAW: %d (%d errors), TIF: %d (%d errors)",
		time.Since(p.started).Round(time.Millisecond), p.processed, p.errors,
		p.rawProcessed, p.rawErrors, p.tifProcessed, p.tifErrors)
}
