package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSpinnerDrawsFrames(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Processing")

	s.Start()
	time.Sleep(250 * time.Millisecond)
	s.Stop()

	got := buf.String()
	if !strings.Contains(got, "\r") {
		t.Error("no carriage returns in spinner output")
	}
	if !strings.Contains(got, "Processing") {
		t.Error("spinner label missing from output")
	}
	if !strings.HasSuffix(got, "\r\033[K") {
		t.Errorf("Stop did not clear the line, output ends %q", got[max(0, len(got)-8):])
	}
}

func TestSpinnerSuccess(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Snapshotting")

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Success("Snapshot written")

	got := buf.String()
	if !strings.Contains(got, "✓ Snapshot written\n") {
		t.Errorf("missing success line, output = %q", got)
	}
}

func TestSpinnerFail(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Snapshotting")

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Fail("Snapshot failed")

	got := buf.String()
	if !strings.Contains(got, "✗ Snapshot failed\n") {
		t.Errorf("missing failure line, output = %q", got)
	}
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	s := NewSpinner(&bytes.Buffer{}, "idle")
	s.Stop() // must not panic or hang
}

func TestSpinnerFinishIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "working")

	s.Start()
	s.Success("done")
	s.Stop()
	s.Fail("too late")

	got := buf.String()
	if strings.Contains(got, "too late") {
		t.Error("second finish call produced output")
	}
	if strings.Count(got, "✓") != 1 {
		t.Errorf("expected exactly one success line, output = %q", got)
	}
}
