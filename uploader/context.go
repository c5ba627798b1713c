// Package uploader selects the upload protocol of a board and builds the
// command line of the matching external uploader.
package uploader

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Artifact is a firmware output format consumed by an uploader.
type Artifact int

const (
	ELF Artifact = iota
	HEX
	BIN
)

// Ext returns the file extension of the artifact, including the dot.
func (a Artifact) Ext() string {
	switch a {
	case HEX:
		return ".hex"
	case BIN:
		return ".bin"
	default:
		return ".elf"
	}
}

func (a Artifact) String() string {
	return strings.TrimPrefix(a.Ext(), ".")
}

// ParseArtifact parses "elf", "hex" or "bin".
func ParseArtifact(s string) (Artifact, error) {
	switch strings.ToLower(s) {
	case "elf":
		return ELF, nil
	case "hex":
		return HEX, nil
	case "bin":
		return BIN, nil
	}
	return ELF, errors.Errorf("unknown upload target %q (use elf, hex or bin)", s)
}

// PortPrep is the kind of serial port preparation an upload needs before the
// uploader runs.
type PortPrep int

const (
	// PortPrepNone: the uploader does not use a serial port.
	PortPrepNone PortPrep = iota
	// PortPrepAutodetect: pick an upload port if none was configured.
	PortPrepAutodetect
	// PortPrepReset: run the flush/1200-bps touch/wait sequence.
	PortPrepReset
)

func (p PortPrep) String() string {
	switch p {
	case PortPrepAutodetect:
		return "autodetect"
	case PortPrepReset:
		return "reset"
	default:
		return "none"
	}
}

// PortPlaceholder is replaced with the upload port when the command runs.
const PortPlaceholder = "$UPLOAD_PORT"

// Script is a file that must be written before the uploader runs.
type Script struct {
	Path    string
	Content []byte
}

// Context is everything needed to run one upload. It is built fresh for every
// upload and discarded afterwards.
type Context struct {
	Protocol      string
	Uploader      string
	UploaderFlags []string

	// Command is the complete argv. Tokens may contain PortPlaceholder.
	Command []string

	Target Artifact
	Source string

	Scripts  []Script
	PortPrep PortPrep

	// PythonDeps is set when the uploader is a Python script with package
	// requirements that must be satisfied first.
	PythonDeps bool
}

// Argv returns the command with the upload port substituted.
func (c *Context) Argv(port string) []string {
	argv := make([]string, len(c.Command))
	for i, arg := range c.Command {
		argv[i] = strings.ReplaceAll(arg, PortPlaceholder, port)
	}
	return argv
}

// Env is the part of the host environment command construction depends on.
type Env struct {
	GOOS        string
	BuildDir    string
	PackagesDir string
	PythonExe   string
	Progname    string
	Verbose     bool
}

// ArtifactPath returns the path of the given build output.
func (e Env) ArtifactPath(a Artifact) string {
	progname := e.Progname
	if progname == "" {
		progname = "firmware"
	}
	return filepath.Join(e.BuildDir, progname+a.Ext())
}

// PackageDir returns the install directory of a tool package.
func (e Env) PackageDir(name string) string {
	return filepath.Join(e.PackagesDir, name)
}
