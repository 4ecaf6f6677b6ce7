package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/codeslinger/sendfile/src/internal/client"
	"github.com/codeslinger/sendfile/src/internal/core"
	"github.com/codeslinger/sendfile/src/internal/server"
	"github.com/codeslinger/sendfile/src/internal/verify"
)

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{3 << 20, "3.0 MiB"},
		{5 << 30, "5.0 GiB"},
		{2 << 40, "2.0 TiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{0, "-- B/s"},
		{100, "100 B/s"},
		{2048, "2.0 KiB/s"},
		{10 << 20, "10.0 MiB/s"},
	}

	for _, tt := range tests {
		if got := FormatSpeed(tt.in); got != tt.want {
			t.Errorf("FormatSpeed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "--"},
		{250 * time.Microsecond, "250µs"},
		{42 * time.Millisecond, "42ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1.5m"},
		{3 * time.Hour, "3.0h"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatusRenderer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	sr := NewStatusRenderer(&buf, false, false)
	sr.PrintSuccess("done", "first", "", "second")
	sr.PrintFields([][2]string{{"a", "1"}, {"long", "2"}})

	want := "✅ done\n  first\n  second\n  a     1\n  long  2\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}

	colored := NewStatusRenderer(&buf, true, true).RenderStatus(&StatusMessage{
		Type:      StatusError,
		Message:   "bad",
		Timestamp: time.Date(2024, 1, 1, 13, 4, 5, 0, time.UTC),
	})

	if !strings.Contains(colored, "\x1b[") || !strings.Contains(colored, "13:04:05") {
		t.Errorf("colored status = %q, want escapes and a timestamp", colored)
	}
}

func TestReportRenderer(t *testing.T) {
	t.Parallel()

	rr := NewReportRenderer(false)

	send := rr.RenderSend(&client.Report{
		Bytes:      2048,
		Calls:      3,
		Waits:      1,
		Duration:   time.Second,
		Digest:     "abcd",
		Algo:       verify.Blake3,
		Capability: core.CapabilityLinux,
		Nonblock:   true,
	})

	for _, want := range []string{"2.0 KiB", "2.0 KiB/s", "non-blocking via linux, 3 calls, 1 waits", "blake3 abcd"} {
		if !strings.Contains(send, want) {
			t.Errorf("RenderSend() = %q, missing %q", send, want)
		}
	}

	ok := rr.RenderReceipt(server.Receipt{Remote: "peer", Bytes: 10, Digest: "ff"})
	if !strings.Contains(ok, "peer: 10 B") || !strings.HasSuffix(ok, "ff") {
		t.Errorf("RenderReceipt() = %q", ok)
	}

	failed := rr.RenderReceipt(server.Receipt{Remote: "peer", Err: errors.New("reset")})
	if !strings.Contains(failed, "peer: reset") {
		t.Errorf("RenderReceipt(failed) = %q", failed)
	}

	fetch := rr.RenderFetch("a.bin", &client.FetchResult{Bytes: 1024, Duration: time.Second}, "none")
	if !strings.Contains(fetch, "a.bin: 1.0 KiB") || strings.Contains(fetch, "🔑") {
		t.Errorf("RenderFetch() = %q", fetch)
	}
}

type fixedSource struct {
	snap server.Snapshot
}

func (f *fixedSource) Snapshot() server.Snapshot { return f.snap }

func TestDashboardRender(t *testing.T) {
	t.Parallel()

	src := &fixedSource{}
	d := newDashboard(&bytes.Buffer{}, "serve", src, time.Second, false, 40)

	start := time.Now()
	first := d.Render(server.Snapshot{Uptime: time.Minute, Active: 2, Served: 5, Bytes: 1 << 20}, start)

	for _, want := range []string{"serve", "Active: 2", "Served: 5", "1.0 MiB", "-- B/s"} {
		if !strings.Contains(first, want) {
			t.Errorf("first render missing %q:\n%s", want, first)
		}
	}

	second := d.Render(server.Snapshot{Bytes: 3 << 20}, start.Add(2*time.Second))
	if !strings.Contains(second, "1.0 MiB/s") {
		t.Errorf("second render should show 1.0 MiB/s:\n%s", second)
	}
}

func TestDashboardUpdateWrites(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	d := newDashboard(&buf, "recv", &fixedSource{snap: server.Snapshot{Served: 1}}, 0, false, 80)
	d.update(time.Now())

	if !strings.Contains(buf.String(), "Served: 1") || d.lastLines != 5 {
		t.Errorf("update wrote %q (%d lines)", buf.String(), d.lastLines)
	}
}
