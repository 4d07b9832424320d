// Package progress renders the scan agent's two-line terminal status:
// a slower-refreshing stats line (files/s, MB/s, bytes, ETE) and a
// faster-refreshing current-file line, so cache-hit-heavy scans don't
// flood the terminal with redraws.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"golang.org/x/term"
)

// StatsInterval and FileInterval are the two refresh cadences: the stats
// line redraws at 1 Hz, the current-file line at 10 Hz.
const (
	StatsInterval = time.Second
	FileInterval  = 100 * time.Millisecond
)

const fallbackCols = 120

// Snapshot is the shared state the orchestrator updates as it walks.
type Snapshot struct {
	FilesScanned int64
	BytesScanned int64
	BytesHashed  int64
	Total        int64 // 0 when unknown
	TotalIsEstimate bool
	CurrentFile  string
}

// Reporter owns the two-line TTY rendering state (line count drawn so
// far, last-refresh timestamps per line) and writes to w (normally
// os.Stderr).
type Reporter struct {
	w         io.Writer
	start     time.Time
	mu        sync.Mutex
	lastStats time.Time
	lastFile  time.Time
	linesDrawn int
}

// New builds a Reporter that measures elapsed time from start.
func New(w io.Writer, start time.Time) *Reporter {
	return &Reporter{w: w, start: start}
}

// MaybeRender redraws whichever line(s) are due given now, per the
// dual-cadence policy: the stats line takes priority over the
// current-file-only line when both are due.
func (r *Reporter) MaybeRender(now time.Time, snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastStats.IsZero() || now.Sub(r.lastStats) >= StatsInterval {
		r.renderStats(snap, false)
		r.lastStats = now
		r.lastFile = now
		return
	}
	if now.Sub(r.lastFile) >= FileInterval {
		r.renderCurrentFileOnly(snap)
		r.lastFile = now
	}
}

// Final forces a last stats-line render and leaves the cursor on a fresh
// line, called once at scan finalization.
func (r *Reporter) Final(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderStats(snap, true)
}

func (r *Reporter) cols() int {
	f, ok := r.w.(interface{ Fd() uintptr })
	if !ok {
		return fallbackCols
	}
	if !term.IsTerminal(int(f.Fd())) {
		return fallbackCols
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallbackCols
	}
	return w
}

func (r *Reporter) isTTY() bool {
	f, ok := r.w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r *Reporter) renderStats(snap Snapshot, final bool) {
	elapsed := time.Since(r.start).Seconds()
	var filesRate, mbRate float64
	if elapsed > 0 {
		filesRate = float64(snap.FilesScanned) / elapsed
		mbRate = float64(snap.BytesHashed) / elapsed / (1024 * 1024)
	}

	var line1 string
	if snap.Total > 0 {
		totalLabel := fmt.Sprintf("%d", snap.Total)
		if snap.TotalIsEstimate {
			totalLabel = "~" + totalLabel
		}
		pct := 100.0 * float64(snap.FilesScanned) / float64(snap.Total)
		if pct > 100 {
			pct = 100
		}
		line1 = fmt.Sprintf("Scanned %d of %s files | %.0f files/s | %.1f MB/s | %s | %.0f%%",
			snap.FilesScanned, totalLabel, filesRate, mbRate, units.BytesSize(float64(snap.BytesScanned)), pct)
		if filesRate > 0 && snap.FilesScanned < snap.Total {
			eteSecs := float64(snap.Total-snap.FilesScanned) / filesRate
			line1 += " ETE " + formatDuration(eteSecs)
		}
	} else {
		line1 = fmt.Sprintf("Scanned %d files | %.0f files/s | %.1f MB/s | %s",
			snap.FilesScanned, filesRate, mbRate, units.BytesSize(float64(snap.BytesScanned)))
	}
	line1 += fmt.Sprintf(" | %s elapsed", formatDuration(elapsed))

	cols := r.cols()
	if len(line1) > cols-1 {
		line1 = line1[:cols-1]
	}

	prev := r.linesDrawn
	if r.isTTY() && snap.CurrentFile != "" && !final {
		line2 := "  " + snap.CurrentFile
		if len(line2) > cols {
			tail := snap.CurrentFile
			if keep := cols - 5; keep > 0 && keep < len(tail) {
				tail = tail[len(tail)-keep:]
			}
			line2 = "  ..." + tail
		}
		if prev >= 2 {
			fmt.Fprintf(r.w, "\x1b[1A\r\x1b[2K%s\n\r\x1b[2K%s", line1, line2)
		} else {
			fmt.Fprintf(r.w, "\r\x1b[2K%s\n\r\x1b[2K%s", line1, line2)
		}
		r.linesDrawn = 2
		return
	}

	if prev >= 2 {
		fmt.Fprintf(r.w, "\x1b[1A\r\x1b[J%s", line1)
	} else {
		fmt.Fprintf(r.w, "\r\x1b[2K%s", line1)
	}
	if final {
		fmt.Fprint(r.w, "\n")
		r.linesDrawn = 0
	} else {
		r.linesDrawn = 1
	}
}

func (r *Reporter) renderCurrentFileOnly(snap Snapshot) {
	if !r.isTTY() {
		return
	}
	cols := r.cols()
	line2 := "  " + snap.CurrentFile
	if len(line2) > cols {
		tail := snap.CurrentFile
		if keep := cols - 5; keep > 0 && keep < len(tail) {
			tail = tail[len(tail)-keep:]
		}
		line2 = "  ..." + tail
	}
	fmt.Fprintf(r.w, "\r\x1b[2K%s", line2)
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	h, rem := total/3600, total%3600
	m, s := rem/60, rem%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Frame renders snap as a single static line, used in non-interactive
// (non-TTY) contexts such as piping scan output to a log file.
func Frame(snap Snapshot, elapsed time.Duration) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Scanned %d files, %s, %s elapsed",
		snap.FilesScanned, units.BytesSize(float64(snap.BytesScanned)), formatDuration(elapsed.Seconds()))
	return sb.String()
}
