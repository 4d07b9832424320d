package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{65, "1:05"},
		{3661, "1:01:01"},
	}
	for _, c := range cases {
		if got := formatDuration(c.seconds); got != c.want {
			t.Errorf("formatDuration(%v) = %q, want %q", c.seconds, got, c.want)
		}
	}
}

func TestReporterNonTTYRendersSingleLine(t *testing.T) {
	var buf bytes.Buffer
	start := time.Now().Add(-10 * time.Second)
	r := New(&buf, start)

	r.MaybeRender(time.Now(), Snapshot{FilesScanned: 42, BytesScanned: 1024, Total: 100})
	out := buf.String()
	if !strings.Contains(out, "Scanned 42 of 100 files") {
		t.Errorf("output = %q, want it to mention progress against total", out)
	}
	if strings.Contains(out, "\x1b[1A") {
		t.Errorf("non-TTY output should not cursor-up on first render: %q", out)
	}
}

func TestReporterFinalEndsWithNewline(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, time.Now())
	r.Final(Snapshot{FilesScanned: 10, BytesScanned: 512})
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Errorf("Final output should end with a newline, got %q", buf.String())
	}
}

func TestFrame(t *testing.T) {
	out := Frame(Snapshot{FilesScanned: 5, BytesScanned: 2048}, 3*time.Second)
	if !strings.Contains(out, "Scanned 5 files") {
		t.Errorf("Frame output = %q, want it to mention file count", out)
	}
}
