package serialport

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPortSetAdded(t *testing.T) {
	before := NewPortSet("/dev/ttyACM0")
	after := NewPortSet("/dev/ttyACM0", "/dev/ttyUSB1", "/dev/ttyACM1")
	added := after.Added(before)
	if len(added) != 2 || added[0] != "/dev/ttyACM1" || added[1] != "/dev/ttyUSB1" {
		t.Errorf("Added() = %v", added)
	}
	if got := before.Added(before); len(got) != 0 {
		t.Errorf("Added() on identical sets = %v, want none", got)
	}
}

func TestPrepareFullSequence(t *testing.T) {
	rec := &recorder{}
	seq, _, _ := newTestSequencer(rec,
		NewPortSet("A"),
		NewPortSet("A", "B"),
	)
	port, err := seq.Prepare(context.Background(), "A", Options{
		Use1200bpsTouch:   true,
		WaitForUploadPort: true,
	})
	if err != nil {
		t.Fatal("Prepare:", err)
	}
	if port != "B" {
		t.Errorf("Prepare() = %q, want B", port)
	}

	want := strings.Join([]string{
		"open A 9600",
		"flush A",
		"dtr A false",
		"rts A false",
		"dtr A true",
		"rts A true",
		"close A",
		"list [A]",
		"open A 1200",
		"dtr A false",
		"close A",
		"list [A B]",
		"open B 9600",
		"close B",
	}, "\n")
	if got := rec.String(); got != want {
		t.Errorf("unexpected call log:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrepareDisableFlushing(t *testing.T) {
	rec := &recorder{}
	seq, _, _ := newTestSequencer(rec, NewPortSet("A"))
	if _, err := seq.Prepare(context.Background(), "A", Options{DisableFlushing: true}); err != nil {
		t.Fatal(err)
	}
	for _, call := range rec.calls {
		if strings.HasPrefix(call, "flush") || strings.HasPrefix(call, "open") {
			t.Errorf("flush must be suppressed, got call %q", call)
		}
	}

	rec = &recorder{}
	seq, _, _ = newTestSequencer(rec, NewPortSet("A"))
	if _, err := seq.Prepare(context.Background(), "A", Options{}); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) == 0 || rec.calls[0] != "open A 9600" || rec.calls[1] != "flush A" {
		t.Errorf("flush must run when not disabled, got:\n%s", rec)
	}
}

func TestPrepareWithoutWaitKeepsPort(t *testing.T) {
	rec := &recorder{}
	seq, lister, _ := newTestSequencer(rec, NewPortSet("A"), NewPortSet("A", "B"))
	port, err := seq.Prepare(context.Background(), "A", Options{Use1200bpsTouch: true})
	if err != nil {
		t.Fatal(err)
	}
	if port != "A" {
		t.Errorf("Prepare() = %q, want the configured port", port)
	}
	if lister.calls != 1 {
		t.Errorf("expected a single snapshot, got %d", lister.calls)
	}
}

func TestWaitTimeout(t *testing.T) {
	seq, lister, clock := newTestSequencer(nil, NewPortSet("A"))
	start := clock.now
	_, err := seq.Prepare(context.Background(), "A", Options{
		DisableFlushing:   true,
		WaitForUploadPort: true,
	})
	var timeout *PortTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected a PortTimeoutError, got %v", err)
	}
	if timeout.Port != "A" || timeout.Timeout != time.Second {
		t.Errorf("unexpected timeout error: %+v", timeout)
	}
	if elapsed := clock.now.Sub(start); elapsed < time.Second || elapsed > 2*time.Second {
		t.Errorf("wait took %s of fake time, want about 1s", elapsed)
	}
	if lister.calls < 4 {
		t.Errorf("expected repeated polling, got %d enumerations", lister.calls)
	}
}

func TestWaitTieBreak(t *testing.T) {
	seq, _, _ := newTestSequencer(nil,
		NewPortSet("COM3"),
		NewPortSet("COM3", "COM9", "COM10", "COM4"),
	)
	port, err := seq.WaitForNewPort(context.Background(), "COM3", NewPortSet("COM3"))
	if err != nil {
		t.Fatal(err)
	}
	if port != "COM10" {
		t.Errorf("WaitForNewPort() = %q, want lexicographically smallest COM10", port)
	}
}

func TestWaitDetectsReappearingPort(t *testing.T) {
	seq, _, _ := newTestSequencer(nil,
		NewPortSet(),
		NewPortSet("A"),
	)
	port, err := seq.WaitForNewPort(context.Background(), "A", NewPortSet("A"))
	if err != nil {
		t.Fatal(err)
	}
	if port != "A" {
		t.Errorf("WaitForNewPort() = %q, want A", port)
	}
}

func TestWaitCancelled(t *testing.T) {
	seq, _, _ := newTestSequencer(nil, NewPortSet("A"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := seq.WaitForNewPort(ctx, "A", NewPortSet("A"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTouchFailure(t *testing.T) {
	rec := &recorder{}
	seq, _, _ := newTestSequencer(rec, NewPortSet("A"), NewPortSet("A", "B"))
	seq.Opener = &fakeOpener{rec: rec, fail: map[string]bool{"A": true}}

	if _, err := seq.Prepare(context.Background(), "A", Options{DisableFlushing: true, Use1200bpsTouch: true}); err == nil {
		t.Error("touch failure without wait must be reported")
	}

	seq, _, _ = newTestSequencer(rec, NewPortSet("A"), NewPortSet("A", "B"))
	seq.Opener = &fakeOpener{rec: rec, fail: map[string]bool{"A": true}}
	port, err := seq.Prepare(context.Background(), "A", Options{
		DisableFlushing:   true,
		Use1200bpsTouch:   true,
		WaitForUploadPort: true,
	})
	if err != nil || port != "B" {
		t.Errorf("Prepare() = %q, %v; want B, nil", port, err)
	}
}

func TestTouchSkipsDTROnWindows(t *testing.T) {
	rec := &recorder{}
	seq, _, clock := newTestSequencer(rec, NewPortSet("COM3"))
	seq.GOOS = "windows"
	if err := seq.Touch(context.Background(), "COM3"); err != nil {
		t.Fatal(err)
	}
	if got := rec.String(); got != "open COM3 1200\nclose COM3" {
		t.Errorf("unexpected call log:\n%s", got)
	}
	if clock.slept != seq.TouchSettle {
		t.Errorf("slept %s, want %s", clock.slept, seq.TouchSettle)
	}
}

type staticDetails []PortInfo

func (s staticDetails) ListDetailed() ([]PortInfo, error) {
	return append([]PortInfo(nil), s...), nil
}

func TestAutodetect(t *testing.T) {
	ports := staticDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB1", IsUSB: true},
		{Name: "/dev/ttyUSB0", IsUSB: true},
	}
	if got, _ := Autodetect(ports, "/dev/custom"); got != "/dev/custom" {
		t.Errorf("configured port must win, got %q", got)
	}
	if got, _ := Autodetect(ports, ""); got != "/dev/ttyUSB0" {
		t.Errorf("Autodetect() = %q, want /dev/ttyUSB0", got)
	}
	if got, _ := Autodetect(staticDetails{{Name: "/dev/ttyS1"}, {Name: "/dev/ttyS0"}}, ""); got != "/dev/ttyS0" {
		t.Errorf("Autodetect() = %q, want /dev/ttyS0", got)
	}
	if _, err := Autodetect(staticDetails{}, ""); !errors.Is(err, ErrNoPorts) {
		t.Errorf("expected ErrNoPorts, got %v", err)
	}
}
