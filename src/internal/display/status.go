package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// StatusType represents different types of status messages.
type StatusType int

// StatusType values enumerate the kinds of status messages that can be rendered.
const (
	StatusInfo StatusType = iota
	StatusSuccess
	StatusWarning
	StatusError
	StatusProgress
)

// StatusMessage represents a status message with formatting.
type StatusMessage struct {
	Type      StatusType
	Message   string
	Timestamp time.Time
	Details   []string
}

// StatusRenderer writes status lines to an output stream.
type StatusRenderer struct {
	out          io.Writer
	colorEnabled bool
	showTime     bool
}

// NewStatusRenderer creates a status renderer writing to out.
func NewStatusRenderer(out io.Writer, colorEnabled, showTime bool) *StatusRenderer {
	return &StatusRenderer{
		out:          out,
		colorEnabled: colorEnabled,
		showTime:     showTime,
	}
}

// RenderStatus renders a status message with appropriate formatting.
func (sr *StatusRenderer) RenderStatus(status *StatusMessage) string {
	var parts []string

	if sr.showTime {
		timestamp := status.Timestamp.Format("15:04:05")
		parts = append(parts, colorize(sr.colorEnabled, "["+timestamp+"]", color.FgWhite))
	}

	message := statusIcon(status.Type) + " " + status.Message
	parts = append(parts, colorize(sr.colorEnabled, message, statusColor(status.Type)))

	result := strings.Join(parts, " ")

	for _, line := range status.Details {
		if line != "" {
			result += "\n  " + colorize(sr.colorEnabled, line, color.FgWhite)
		}
	}

	return result
}

func (sr *StatusRenderer) print(kind StatusType, message string, details []string) {
	status := &StatusMessage{
		Type:      kind,
		Message:   message,
		Timestamp: time.Now(),
		Details:   details,
	}

	fmt.Fprintln(sr.out, sr.RenderStatus(status))
}

// PrintInfo prints an info message.
func (sr *StatusRenderer) PrintInfo(message string, details ...string) {
	sr.print(StatusInfo, message, details)
}

// PrintSuccess prints a success message.
func (sr *StatusRenderer) PrintSuccess(message string, details ...string) {
	sr.print(StatusSuccess, message, details)
}

// PrintWarning prints a warning message.
func (sr *StatusRenderer) PrintWarning(message string, details ...string) {
	sr.print(StatusWarning, message, details)
}

// PrintError prints an error message.
func (sr *StatusRenderer) PrintError(message string, details ...string) {
	sr.print(StatusError, message, details)
}

// PrintProgress prints a progress message.
func (sr *StatusRenderer) PrintProgress(message string, details ...string) {
	sr.print(StatusProgress, message, details)
}

// PrintFields prints label/value pairs aligned on the longest label.
func (sr *StatusRenderer) PrintFields(fields [][2]string) {
	width := 0
	for _, f := range fields {
		width = max(width, len(f[0]))
	}

	for _, f := range fields {
		label := colorize(sr.colorEnabled, fmt.Sprintf("%-*s", width, f[0]), color.FgCyan)
		fmt.Fprintf(sr.out, "  %s  %s\n", label, f[1])
	}
}

func statusIcon(statusType StatusType) string {
	switch statusType {
	case StatusInfo:
		return "ℹ️"
	case StatusSuccess:
		return "✅"
	case StatusWarning:
		return "⚠️"
	case StatusError:
		return "❌"
	case StatusProgress:
		return "🔄"
	default:
		return "•"
	}
}

func statusColor(statusType StatusType) color.Attribute {
	switch statusType {
	case StatusInfo:
		return color.FgCyan
	case StatusSuccess:
		return color.FgGreen
	case StatusWarning:
		return color.FgYellow
	case StatusError:
		return color.FgRed
	case StatusProgress:
		return color.FgBlue
	default:
		return color.FgWhite
	}
}

// colorize applies color formatting if enabled.
func colorize(enabled bool, text string, attrs ...color.Attribute) string {
	if !enabled {
		return text
	}

	c := color.New(attrs...)
	c.EnableColor()

	return c.Sprint(text)
}

// CreateSeparator creates a visual separator line.
func CreateSeparator(width int, colorEnabled bool) string {
	if width <= 0 {
		width = 60
	}

	return colorize(colorEnabled, strings.Repeat("─", width), color.FgBlue)
}
