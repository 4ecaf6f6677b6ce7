// Package display renders transfer reports and server counters for the terminal.
package display

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/codeslinger/sendfile/src/internal/client"
	"github.com/codeslinger/sendfile/src/internal/server"
)

// ReportRenderer formats finished transfers.
type ReportRenderer struct {
	colorEnabled bool
}

// NewReportRenderer creates a new report renderer.
func NewReportRenderer(colorEnabled bool) *ReportRenderer {
	return &ReportRenderer{colorEnabled: colorEnabled}
}

// RenderSend renders the outcome of one send.
func (rr *ReportRenderer) RenderSend(r *client.Report) string {
	var lines []string

	mode := "blocking"
	if r.Nonblock {
		mode = "non-blocking"
	}

	lines = append(lines, fmt.Sprintf("📤 Sent %s in %s (%s)",
		rr.format(FormatBytes(r.Bytes), color.FgCyan),
		rr.format(FormatDuration(r.Duration), color.FgWhite),
		rr.format(FormatSpeed(r.Speed()), color.FgGreen),
	))

	lines = append(lines, fmt.Sprintf("⚙️  %s via %s, %d calls, %d waits",
		mode,
		rr.format(r.Capability.String(), color.FgYellow),
		r.Calls,
		r.Waits,
	))

	if r.Digest != "" {
		lines = append(lines, rr.digestLine(string(r.Algo), r.Digest))
	}

	return strings.Join(lines, "\n")
}

// RenderReceipt renders one stream taken in by the receiver.
func (rr *ReportRenderer) RenderReceipt(rc server.Receipt) string {
	if rc.Err != nil {
		return rr.format(fmt.Sprintf("❌ %s: %v", rc.Remote, rc.Err), color.FgRed)
	}

	line := fmt.Sprintf("📥 %s: %s in %s",
		rc.Remote,
		rr.format(FormatBytes(rc.Bytes), color.FgCyan),
		rr.format(FormatDuration(rc.Duration), color.FgWhite),
	)

	if rc.Digest != "" {
		line += " " + rr.format(rc.Digest, color.FgMagenta)
	}

	return line
}

// RenderFetch renders a finished fetch of name.
func (rr *ReportRenderer) RenderFetch(name string, res *client.FetchResult, algo string) string {
	speed := 0.0
	if res.Duration > 0 {
		speed = float64(res.Bytes) / res.Duration.Seconds()
	}

	line := fmt.Sprintf("📥 Fetched %s: %s in %s (%s)",
		rr.format(name, color.FgYellow),
		rr.format(FormatBytes(res.Bytes), color.FgCyan),
		rr.format(FormatDuration(res.Duration), color.FgWhite),
		rr.format(FormatSpeed(speed), color.FgGreen),
	)

	if res.Digest != "" {
		line += "\n" + rr.digestLine(algo, res.Digest)
	}

	return line
}

func (rr *ReportRenderer) digestLine(algo, digest string) string {
	return fmt.Sprintf("🔑 %s %s", algo, rr.format(digest, color.FgMagenta))
}

func (rr *ReportRenderer) format(text string, attr color.Attribute) string {
	return colorize(rr.colorEnabled, text, attr)
}
