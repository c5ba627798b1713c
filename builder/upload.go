package builder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/riscv-pio/riscv-upload/boardconfig"
	"github.com/riscv-pio/riscv-upload/pipdeps"
	"github.com/riscv-pio/riscv-upload/serialport"
	"github.com/riscv-pio/riscv-upload/uploader"
	"github.com/sirupsen/logrus"
)

// DependencyChecker makes sure an uploader's runtime dependencies are present.
type DependencyChecker interface {
	Ensure(ctx context.Context) error
}

// Executor assembles the actions of the upload target.
type Executor struct {
	Board     *boardconfig.Board
	Sequencer *serialport.Sequencer
	Ports     serialport.DetailedLister
	Deps      DependencyChecker
	Runner    Runner
	Stdout    io.Writer
	Stderr    io.Writer
	Log       logrus.FieldLogger
}

// NewExecutor returns an executor preparing ports on the real OS.
func NewExecutor(board *boardconfig.Board, runner Runner, log logrus.FieldLogger) *Executor {
	return &Executor{
		Board:     board,
		Sequencer: serialport.NewSequencer(log),
		Ports:     serialport.OSLister{},
		Runner:    runner,
		Log:       log,
	}
}

// NeedsPortPrep reports whether the upload must prepare a serial port first.
func NeedsPortPrep(uctx *uploader.Context) bool {
	return uctx.PortPrep != uploader.PortPrepNone
}

// Actions returns the ordered actions of an upload: the firmware check, port
// preparation when needed, the dependency check of script based flashers,
// then the uploader itself. The firmware is checked first so a board is
// never reset for an upload that cannot happen.
func (e *Executor) Actions(uctx *uploader.Context, needsPortPrep bool) ActionList {
	actions := ActionList{{
		Description: "Checking size " + uctx.Source,
		Run: func(ctx context.Context, port string) (string, error) {
			return port, e.check(uctx)
		},
	}}
	if needsPortPrep {
		switch uctx.PortPrep {
		case uploader.PortPrepAutodetect:
			actions = append(actions, Action{
				Description: "Looking for upload port...",
				Run: func(ctx context.Context, port string) (string, error) {
					return serialport.Autodetect(e.Ports, port)
				},
			})
		case uploader.PortPrepReset:
			upload := e.Board.Upload()
			opts := serialport.Options{
				DisableFlushing:   upload.DisableFlushing,
				Use1200bpsTouch:   upload.Use1200bpsTouch,
				WaitForUploadPort: upload.WaitForUploadPort,
			}
			actions = append(actions, Action{
				Description: "Preparing upload port...",
				Run: func(ctx context.Context, port string) (string, error) {
					// The board's current port is needed to flush and touch it.
					port, err := serialport.Autodetect(e.Ports, port)
					if err != nil {
						return "", err
					}
					return e.Sequencer.Prepare(ctx, port, opts)
				},
			})
		}
	}
	if uctx.PythonDeps {
		actions = append(actions, Action{
			Description: "Checking flasher dependencies...",
			Run: func(ctx context.Context, port string) (string, error) {
				return port, e.Deps.Ensure(ctx)
			},
		})
	}
	actions = append(actions, Action{
		Description: "Uploading " + uctx.Source,
		Run: func(ctx context.Context, port string) (string, error) {
			return port, e.upload(ctx, uctx, port)
		},
	})
	return actions
}

// check validates the firmware and writes the uploader scripts.
func (e *Executor) check(uctx *uploader.Context) error {
	if uctx.PythonDeps && e.Deps == nil {
		return &pipdeps.DependencyError{
			Packages: pipdeps.FlasherRequirements,
			Err:      errors.New("no dependency checker configured"),
		}
	}
	size, err := CheckArtifact(uctx.Target, uctx.Source, e.Board.Upload().MaximumSize)
	if err != nil {
		return err
	}
	e.logger().WithFields(logrus.Fields{
		"protocol": uctx.Protocol,
		"size":     FormatSize(size),
	}).Debug("firmware checked")

	for _, script := range uctx.Scripts {
		if err := os.MkdirAll(filepath.Dir(script.Path), 0o777); err != nil {
			return errors.Wrap(err, "could not create script directory")
		}
		if err := os.WriteFile(script.Path, script.Content, 0o666); err != nil {
			return errors.Wrap(err, "could not write uploader script")
		}
	}
	return nil
}

func (e *Executor) upload(ctx context.Context, uctx *uploader.Context, port string) error {
	if port == "" {
		for _, arg := range uctx.Command {
			if strings.Contains(arg, uploader.PortPlaceholder) {
				return errors.Errorf("%s upload needs a serial port, set upload_port or -port", uctx.Protocol)
			}
		}
	}
	argv := uctx.Argv(port)
	e.logger().WithFields(logrus.Fields{
		"protocol": uctx.Protocol,
		"port":     port,
	}).Debug(strings.Join(argv, " "))
	return e.Runner.Run(ctx, argv, e.output(e.Stdout), e.output(e.Stderr))
}

// Register adds the upload alias. It always runs when requested and holds
// the build directory upload lock while running.
func (e *Executor) Register(r *Registry, uctx *uploader.Context, lockFile string, deps ...string) {
	r.Add(&Alias{
		Name:        "upload",
		Deps:        deps,
		Source:      uctx.Source,
		Actions:     e.Actions(uctx, NeedsPortPrep(uctx)),
		AlwaysBuild: true,
		LockFile:    lockFile,
	})
}

func (e *Executor) output(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

func (e *Executor) logger() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}
