package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/codeslinger/sendfile/src/internal/server"
)

// SnapshotSource is anything that can report server counters.
type SnapshotSource interface {
	Snapshot() server.Snapshot
}

// Dashboard redraws live server counters in place.
type Dashboard struct {
	out          io.Writer
	source       SnapshotSource
	title        string
	refreshRate  time.Duration
	colorEnabled bool
	termWidth    int
	lastLines    int
	lastBytes    int64
	lastTick     time.Time
}

// NewDashboard creates a dashboard for source on stdout. Colour and in-place
// redraws are enabled only when stdout is a terminal.
func NewDashboard(title string, source SnapshotSource, refreshRate time.Duration) *Dashboard {
	fd := int(os.Stdout.Fd())

	colorEnabled := term.IsTerminal(fd)

	termWidth, _, err := term.GetSize(fd)
	if err != nil || termWidth <= 0 {
		termWidth = 80
	}

	return newDashboard(os.Stdout, title, source, refreshRate, colorEnabled, termWidth)
}

func newDashboard(out io.Writer, title string, source SnapshotSource, refreshRate time.Duration, colorEnabled bool, width int) *Dashboard {
	if refreshRate <= 0 {
		refreshRate = time.Second
	}

	return &Dashboard{
		out:          out,
		source:       source,
		title:        title,
		refreshRate:  refreshRate,
		colorEnabled: colorEnabled,
		termWidth:    width,
	}
}

// Run redraws the dashboard until ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) {
	ticker := time.NewTicker(d.refreshRate)
	defer ticker.Stop()

	// Hide cursor
	if d.colorEnabled {
		fmt.Fprint(d.out, "\033[?25l")
		defer fmt.Fprint(d.out, "\033[?25h")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.update(now)
		}
	}
}

func (d *Dashboard) update(now time.Time) {
	d.clearLines()

	output := d.Render(d.source.Snapshot(), now)
	fmt.Fprint(d.out, output)

	d.lastLines = strings.Count(output, "\n") + 1
}

// Render formats snap as the dashboard body. Throughput is measured against
// the previous call.
func (d *Dashboard) Render(snap server.Snapshot, now time.Time) string {
	var rate float64
	if !d.lastTick.IsZero() {
		if elapsed := now.Sub(d.lastTick).Seconds(); elapsed > 0 {
			rate = float64(snap.Bytes-d.lastBytes) / elapsed
		}
	}

	d.lastBytes = snap.Bytes
	d.lastTick = now

	width := d.termWidth - 1
	if width < 20 {
		width = 20
	}

	lines := []string{
		d.format("🚀 "+d.title, color.FgCyan),
		d.format(strings.Repeat("─", width), color.FgBlue),
		fmt.Sprintf("⏱️  Uptime: %s | 🔌 Active: %s | 📨 Accepted: %d",
			d.format(FormatDuration(snap.Uptime), color.FgWhite),
			d.format(fmt.Sprintf("%d", snap.Active), color.FgYellow),
			snap.Accepted,
		),
		fmt.Sprintf("✅ Served: %s | ❌ Failed: %s",
			d.format(fmt.Sprintf("%d", snap.Served), color.FgGreen),
			d.format(fmt.Sprintf("%d", snap.Failed), color.FgRed),
		),
		fmt.Sprintf("📊 Sent: %s (%s)",
			d.format(FormatBytes(snap.Bytes), color.FgCyan),
			d.format(FormatSpeed(rate), color.FgGreen),
		),
	}

	return strings.Join(lines, "\n")
}

// clearLines clears the previously printed lines.
func (d *Dashboard) clearLines() {
	if d.lastLines > 0 && d.colorEnabled {
		// Move to the first line, then clear each one on the way down.
		fmt.Fprintf(d.out, "\r\033[%dA", d.lastLines-1)

		for i := 0; i < d.lastLines; i++ {
			fmt.Fprint(d.out, "\033[2K\033[1B")
		}

		fmt.Fprintf(d.out, "\033[%dA", d.lastLines)
	}
}

func (d *Dashboard) format(text string, attr color.Attribute) string {
	return colorize(d.colorEnabled, text, attr)
}
