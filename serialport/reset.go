package serialport

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Defaults for the wait-for-new-port poll.
const (
	DefaultTimeout      = 5 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
)

// Options selects which steps of the reset sequence run. They come straight
// from the board's upload section.
type Options struct {
	DisableFlushing   bool
	Use1200bpsTouch   bool
	WaitForUploadPort bool
}

// Required reports whether the options ask for live port manipulation.
func (o Options) Required() bool {
	return o.Use1200bpsTouch || o.WaitForUploadPort
}

// PortTimeoutError is returned when no new serial port appeared within the
// wait timeout. It usually means the board did not enter its bootloader or
// the USB driver is missing.
type PortTimeoutError struct {
	Port    string
	Timeout time.Duration
	Before  []string
	Last    []string
}

func (e *PortTimeoutError) Error() string {
	return fmt.Sprintf("no new upload port appeared within %s after resetting %q (before: [%s], last seen: [%s])",
		e.Timeout, e.Port, strings.Join(e.Before, " "), strings.Join(e.Last, " "))
}

// Sequencer runs the pre-upload reset dance. All hardware and time access
// goes through its fields so the sequence can run against fakes.
type Sequencer struct {
	Lister Lister
	Opener Opener
	Clock  Clock
	Log    logrus.FieldLogger

	// Timeout bounds the wait for a new port. PollInterval is the delay
	// between two enumerations.
	Timeout      time.Duration
	PollInterval time.Duration

	// FlushPause is the delay between the DTR/RTS transitions of a flush,
	// TouchSettle the delay after closing a port touched at 1200 bps and
	// OpenRetryDelay the delay applied when a freshly found port is not
	// openable yet.
	FlushPause     time.Duration
	TouchSettle    time.Duration
	OpenRetryDelay time.Duration

	GOOS string
}

// NewSequencer returns a sequencer talking to the real OS.
func NewSequencer(log logrus.FieldLogger) *Sequencer {
	return &Sequencer{
		Lister:         OSLister{},
		Opener:         OSOpener{},
		Clock:          SystemClock,
		Log:            log,
		Timeout:        DefaultTimeout,
		PollInterval:   DefaultPollInterval,
		FlushPause:     100 * time.Millisecond,
		TouchSettle:    500 * time.Millisecond,
		OpenRetryDelay: time.Second,
		GOOS:           runtime.GOOS,
	}
}

// Prepare runs, in order: flush (unless disabled), snapshot, 1200-bps touch
// (if enabled) and the wait for a new port (if enabled). It returns the port
// to upload to, which is the newly discovered one when waiting was requested
// and port otherwise.
func (s *Sequencer) Prepare(ctx context.Context, port string, opts Options) (string, error) {
	log := s.logger().WithField("port", port)

	if !opts.DisableFlushing {
		if port == "" {
			log.Debug("no upload port configured, skipping flush")
		} else if err := s.Flush(ctx, port); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.WithError(err).Warn("could not flush serial buffer")
		}
	}

	before, err := s.Lister.ListPorts()
	if err != nil {
		return "", errors.Wrap(err, "snapshot before reset")
	}
	log.WithField("ports", before.Names()).Debug("ports before reset")

	if opts.Use1200bpsTouch {
		if err := s.Touch(ctx, port); err != nil {
			if !opts.WaitForUploadPort || ctx.Err() != nil {
				return "", errors.Wrap(err, "1200-bps touch")
			}
			// The port may disappear while it is being touched.
			log.WithError(err).Debug("1200-bps touch failed, waiting for a new port anyway")
		}
	}

	if !opts.WaitForUploadPort {
		return port, nil
	}
	newPort, err := s.WaitForNewPort(ctx, port, before)
	if err != nil {
		return "", err
	}
	log.WithField("new_port", newPort).Info("found upload port")
	return newPort, nil
}

// Flush discards buffered input of the port and pulses DTR/RTS, so that a
// following reset is not misread as data.
func (s *Sequencer) Flush(ctx context.Context, name string) error {
	p, err := s.Opener.Open(name, 9600)
	if err != nil {
		return errors.Wrapf(err, "open %s", name)
	}
	defer p.Close()
	if err := p.ResetInputBuffer(); err != nil {
		return errors.Wrap(err, "reset input buffer")
	}
	for _, level := range []bool{false, true} {
		if err := p.SetDTR(level); err != nil {
			return errors.Wrap(err, "set DTR")
		}
		if err := p.SetRTS(level); err != nil {
			return errors.Wrap(err, "set RTS")
		}
		if err := sleep(ctx, s.Clock, s.FlushPause); err != nil {
			return err
		}
	}
	return nil
}

// Touch opens the port at 1200 bps and closes it again. Many USB bootloaders
// take this as the signal to reboot into programming mode.
func (s *Sequencer) Touch(ctx context.Context, name string) error {
	s.logger().WithField("port", name).Info("forcing reset using 1200bps open/close")
	p, err := s.Opener.Open(name, 1200)
	if err != nil {
		return errors.Wrapf(err, "open %s at 1200bps", name)
	}
	if s.GOOS != "windows" {
		if err := p.SetDTR(false); err != nil {
			p.Close()
			return errors.Wrap(err, "set DTR off")
		}
	}
	if err := p.Close(); err != nil {
		return errors.Wrapf(err, "close %s", name)
	}
	// Enumerating ports too soon may assert DTR again and cancel the reset.
	return sleep(ctx, s.Clock, s.TouchSettle)
}

// WaitForNewPort polls the port list until a port shows up that was not in
// the previous snapshot. The baseline rolls forward after every poll, so a
// port that disappears and comes back under the same name is also detected.
// When several ports appear at once the lexicographically smallest name wins.
func (s *Sequencer) WaitForNewPort(ctx context.Context, port string, before PortSet) (string, error) {
	s.logger().Info("waiting for the new upload port...")
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	initial := before.Names()
	deadline := s.Clock.Now().Add(timeout)
	last := before
	for {
		now, err := s.Lister.ListPorts()
		if err != nil {
			return "", errors.Wrap(err, "list serial ports")
		}
		if added := now.Added(last); len(added) > 0 {
			found := added[0]
			if len(added) > 1 {
				s.logger().WithField("candidates", added).Warn("multiple new ports appeared, using the first one")
			}
			s.probe(ctx, found)
			return found, nil
		}
		last = now
		if !s.Clock.Now().Before(deadline) {
			return "", &PortTimeoutError{
				Port:    port,
				Timeout: timeout,
				Before:  initial,
				Last:    now.Names(),
			}
		}
		if err := sleep(ctx, s.Clock, interval); err != nil {
			return "", err
		}
	}
}

// probe checks that a freshly enumerated port can be opened. Some hosts
// report the device before it accepts connections; give it a moment then.
func (s *Sequencer) probe(ctx context.Context, name string) {
	p, err := s.Opener.Open(name, 9600)
	if err != nil {
		sleep(ctx, s.Clock, s.OpenRetryDelay)
		return
	}
	p.Close()
}

func (s *Sequencer) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
