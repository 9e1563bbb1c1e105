// Package progress counts the work done by a run: members classified and
// bytes read and written. A nil *Tracker is valid and records nothing.
package progress

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is how often a running tracker logs its progress.
const DefaultInterval = 250 * time.Millisecond

// Tracker counts classified members and processed bytes
type Tracker struct {
	logger   *slog.Logger
	interval time.Duration

	total        atomic.Int64
	members      atomic.Int64
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64

	mu      sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}
	start   time.Time
}

// Summary is the final state of a tracker
type Summary struct {
	Members      int64
	Total        int64
	BytesRead    uint64
	BytesWritten uint64
	Elapsed      time.Duration
}

// New returns a tracker that logs to logger. A nil logger discards output.
func New(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{logger: logger, interval: DefaultInterval}
}

// SetInterval changes the progress logging period. It has no effect on a
// running tracker.
func (t *Tracker) SetInterval(d time.Duration) {
	if t == nil || d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = d
}

// Init resets the member counters and starts periodic logging for a run
// over totalMembers members. Bytes written are kept across runs. On a
// running tracker Init only resets the counters.
func (t *Tracker) Init(totalMembers int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total.Store(int64(totalMembers))
	t.members.Store(0)
	t.bytesRead.Store(0)
	if t.running {
		return
	}

	t.start = time.Now()
	t.done = make(chan struct{})
	t.stopped = make(chan struct{})
	t.running = true
	go t.report(t.done, t.stopped, t.interval)
}

// MemberDone records one classified member of size payload bytes.
func (t *Tracker) MemberDone(size int) {
	if t == nil {
		return
	}
	t.members.Add(1)
	if size > 0 {
		t.bytesRead.Add(uint64(size))
	}
}

// AddWritten records n bytes written to an output.
func (t *Tracker) AddWritten(n uint64) {
	if t == nil || n == 0 {
		return
	}
	t.bytesWritten.Add(n)
}

// Stop ends periodic logging and logs a summary. Calling Stop on a tracker
// that is not running returns the current counters without logging.
func (t *Tracker) Stop() Summary {
	if t == nil {
		return Summary{}
	}
	t.mu.Lock()
	wasRunning := t.running
	if wasRunning {
		close(t.done)
		t.running = false
	}
	stopped := t.stopped
	start := t.start
	t.mu.Unlock()

	if wasRunning {
		<-stopped
	}
	summary := t.snapshot(start)
	if wasRunning {
		t.logger.Info("run complete",
			"members", summary.Members,
			"read", FormatSize(summary.BytesRead),
			"written", FormatSize(summary.BytesWritten),
			"elapsed", summary.Elapsed.Round(time.Millisecond),
		)
	}
	return summary
}

func (t *Tracker) snapshot(start time.Time) Summary {
	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}
	return Summary{
		Members:      t.members.Load(),
		Total:        t.total.Load(),
		BytesRead:    t.bytesRead.Load(),
		BytesWritten: t.bytesWritten.Load(),
		Elapsed:      elapsed,
	}
}

// report logs progress periodically until done is closed
func (t *Tracker) report(done <-chan struct{}, stopped chan<- struct{}, interval time.Duration) {
	defer close(stopped)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prevMembers int64
	for {
		select {
		case <-ticker.C:
			current := t.members.Load()
			if current == prevMembers {
				continue
			}
			prevMembers = current
			total := t.total.Load()
			percentage := 100.0
			if total > 0 {
				percentage = float64(current) / float64(total) * 100
			}
			t.logger.Debug("classifying members",
				"done", current,
				"total", total,
				"percent", fmt.Sprintf("%.1f", percentage),
				"read", FormatSize(t.bytesRead.Load()),
			)
		case <-done:
			return
		}
	}
}

// FormatSize returns a human-readable size string
func FormatSize(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// Writer is a writer that tracks bytes written for progress reporting
type Writer struct {
	W       io.Writer
	Tracker *Tracker
}

// Write implements io.Writer and tracks bytes written
func (pw *Writer) Write(p []byte) (n int, err error) {
	n, err = pw.W.Write(p)
	if n > 0 {
		pw.Tracker.AddWritten(uint64(n))
	}
	return
}
