package serialport

import (
	"context"
	"time"

	"go.bug.st/serial"
)

// Port is the subset of a serial port used while preparing an upload.
type Port interface {
	ResetInputBuffer() error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	Close() error
}

// Opener opens a serial port at the given baud rate.
type Opener interface {
	Open(name string, baudRate int) (Port, error)
}

// OSOpener opens real serial ports.
type OSOpener struct{}

// Open implements Opener.
func (OSOpener) Open(name string, baudRate int) (Port, error) {
	return serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// Clock abstracts time so that polling loops can be tested without waiting.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

// sleep waits for d on the given clock, returning early with the context
// error if ctx is already done.
func sleep(ctx context.Context, clock Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clock.Sleep(d)
	return ctx.Err()
}
