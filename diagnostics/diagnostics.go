// Package diagnostics formats upload errors and prints them in a consistent
// way.
package diagnostics

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/riscv-pio/riscv-upload/builder"
	"github.com/riscv-pio/riscv-upload/goenv"
	"github.com/riscv-pio/riscv-upload/pipdeps"
	"github.com/riscv-pio/riscv-upload/serialport"
	"github.com/riscv-pio/riscv-upload/uploader"
)

// Kind is the class of failure a diagnostic belongs to.
type Kind int

const (
	Generic Kind = iota
	Config
	PortTimeout
	Process
	Dependency
	Busy
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "configuration"
	case PortTimeout:
		return "upload port"
	case Process:
		return "uploader"
	case Dependency:
		return "dependencies"
	case Busy:
		return "lock"
	default:
		return "error"
	}
}

// A single diagnostic.
type Diagnostic struct {
	// Path is the file the message refers to, if any.
	Path string
	Msg  string
}

// Diagnostics of one failed upload invocation.
type UploadDiagnostic struct {
	Kind        Kind
	Diagnostics []Diagnostic

	// Code is the process exit code the failure maps to.
	Code int
}

// Classify returns the kind of the given error, looking through wrapped
// errors.
func Classify(err error) Kind {
	var (
		unknown  *uploader.UnknownProtocolError
		missing  *uploader.MissingFieldError
		timeout  *serialport.PortTimeoutError
		process  *builder.ProcessError
		depError *pipdeps.DependencyError
	)
	switch {
	case err == nil:
		return Generic
	case errors.Is(err, builder.ErrUploadBusy):
		return Busy
	case errors.As(err, &unknown), errors.As(err, &missing):
		return Config
	case errors.As(err, &timeout):
		return PortTimeout
	case errors.As(err, &depError):
		return Dependency
	case errors.As(err, &process):
		return Process
	default:
		return Generic
	}
}

// ExitCode returns the exit status for err: the uploader's own status when
// it exited with one, 1 for any other failure and 0 for no error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var process *builder.ProcessError
	if errors.As(err, &process) && process.ExitCode > 0 {
		return process.ExitCode
	}
	return 1
}

// CreateDiagnostics reads the underlying errors in the error object and creates
// a set of diagnostics that can be readily printed.
func CreateDiagnostics(err error) *UploadDiagnostic {
	if err == nil {
		return nil
	}
	diag := &UploadDiagnostic{
		Kind: Classify(err),
		Code: ExitCode(err),
	}
	diag.Diagnostics = append(diag.Diagnostics, Diagnostic{Msg: err.Error()})

	// Add a hint for the failures that have a usual cause.
	var (
		timeout  *serialport.PortTimeoutError
		process  *builder.ProcessError
		tooLarge *builder.FirmwareTooLargeError
	)
	switch {
	case errors.As(err, &timeout):
		diag.Diagnostics = append(diag.Diagnostics, Diagnostic{
			Msg: "make sure the board is connected and in bootloader mode, or set upload_port",
		})
	case errors.As(err, &tooLarge):
		diag.Diagnostics[0].Path = tooLarge.Path
	case errors.As(err, &process):
		diag.Diagnostics = append(diag.Diagnostics, Diagnostic{
			Msg: "command: " + process.Command(),
		})
	}
	return diag
}

// Write upload diagnostics to the given writer with 'wd' as the relative
// working directory.
func (d *UploadDiagnostic) WriteTo(w io.Writer, wd string) {
	if d == nil {
		return
	}
	fmt.Fprintln(w, "#", d.Kind)
	for _, diag := range d.Diagnostics {
		diag.WriteTo(w, wd)
	}
}

// Write this diagnostic to the given writer with 'wd' as the relative working
// directory.
func (diag Diagnostic) WriteTo(w io.Writer, wd string) {
	if diag.Path == "" {
		fmt.Fprintln(w, diag.Msg)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", RelativePath(diag.Path, wd), diag.Msg)
}

// Convert path (assumed to be absolute) into a relative path if possible.
// Paths inside PACKAGES_DIR will remain absolute.
func RelativePath(path, wd string) string {
	// Check whether we even have a working directory.
	if wd == "" {
		return path
	}

	// Installed tools should be printed in full.
	if pkgs := goenv.Get("PACKAGES_DIR"); pkgs != "" && strings.HasPrefix(path, pkgs+string(filepath.Separator)) {
		return path
	}

	// Make the path relative, for easier reading. Ignore any errors in the
	// process (falling back to the absolute path).
	relpath, err := filepath.Rel(wd, path)
	if err == nil {
		return relpath
	}
	return path
}
