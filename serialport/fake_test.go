package serialport

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// recorder collects the hardware calls made by a sequencer.
type recorder struct {
	calls []string
}

func (r *recorder) add(format string, args ...interface{}) {
	if r == nil {
		return
	}
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) String() string {
	return strings.Join(r.calls, "\n")
}

type fakePort struct {
	name string
	rec  *recorder
}

func (p *fakePort) ResetInputBuffer() error { p.rec.add("flush %s", p.name); return nil }
func (p *fakePort) SetDTR(dtr bool) error   { p.rec.add("dtr %s %v", p.name, dtr); return nil }
func (p *fakePort) SetRTS(rts bool) error   { p.rec.add("rts %s %v", p.name, rts); return nil }
func (p *fakePort) Close() error            { p.rec.add("close %s", p.name); return nil }

type fakeOpener struct {
	rec  *recorder
	fail map[string]bool
}

func (o *fakeOpener) Open(name string, baudRate int) (Port, error) {
	o.rec.add("open %s %d", name, baudRate)
	if o.fail[name] {
		return nil, fmt.Errorf("cannot open %s", name)
	}
	return &fakePort{name: name, rec: o.rec}, nil
}

// fakeLister returns the scripted snapshots in order, repeating the last one.
type fakeLister struct {
	rec       *recorder
	snapshots []PortSet
	calls     int
}

func (l *fakeLister) ListPorts() (PortSet, error) {
	i := l.calls
	if i >= len(l.snapshots) {
		i = len(l.snapshots) - 1
	}
	l.calls++
	if l.rec != nil {
		l.rec.add("list %v", l.snapshots[i].Names())
	}
	return l.snapshots[i], nil
}

type fakeClock struct {
	now   time.Time
	slept time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.slept += d
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestSequencer(rec *recorder, snapshots ...PortSet) (*Sequencer, *fakeLister, *fakeClock) {
	lister := &fakeLister{rec: rec, snapshots: snapshots}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	return &Sequencer{
		Lister:         lister,
		Opener:         &fakeOpener{rec: rec},
		Clock:          clock,
		Log:            quietLogger(),
		Timeout:        time.Second,
		PollInterval:   250 * time.Millisecond,
		FlushPause:     10 * time.Millisecond,
		TouchSettle:    50 * time.Millisecond,
		OpenRetryDelay: 100 * time.Millisecond,
		GOOS:           "linux",
	}, lister, clock
}
