package display

import (
	"fmt"
	"time"
)

// FormatSpeed formats transfer speed in human-readable format.
func FormatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "-- B/s"
	}

	return scale(bytesPerSecond, []string{"B/s", "KiB/s", "MiB/s", "GiB/s"})
}

// FormatBytes formats byte count in human-readable format.
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}

	return scale(float64(bytes), []string{"B", "KiB", "MiB", "GiB", "TiB"})
}

func scale(size float64, units []string) string {
	unitIndex := 0

	for size >= 1024 && unitIndex < len(units)-1 {
		size /= 1024
		unitIndex++
	}

	if unitIndex == 0 {
		return fmt.Sprintf("%.0f %s", size, units[unitIndex])
	}

	return fmt.Sprintf("%.1f %s", size, units[unitIndex])
}

// FormatDuration formats duration in human-readable format.
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "--"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	default:
		return fmt.Sprintf("%.1fh", d.Hours())
	}
}
