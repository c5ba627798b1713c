// Package builder registers the named targets of the pipeline (upload, size,
// buildprog, nobuild) and runs their actions in sequence.
package builder

// Firmware image conversions. The linked ELF is converted by the toolchain's
// objcopy; this package only builds and runs the command.

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/riscv-pio/riscv-upload/uploader"
)

// Converter describes an objcopy invocation turning the ELF into another
// artifact format.
type Converter struct {
	name   string
	target uploader.Artifact
	flags  func() []string
}

var ElfToHex = Converter{
	name:   "ElfToHex",
	target: uploader.HEX,
	flags: func() []string {
		return []string{"-O", "ihex"}
	},
}

var ElfToBin = Converter{
	name:   "ElfToBin",
	target: uploader.BIN,
	flags: func() []string {
		// Strip symbols: a raw binary has no use for them.
		return []string{"-S", "-O", "binary"}
	},
}

// Name returns the converter name.
func (c Converter) Name() string { return c.name }

// Target returns the artifact this converter produces.
func (c Converter) Target() uploader.Artifact { return c.target }

// Command returns the objcopy command line converting source into target.
func (c Converter) Command(toolchainPrefix, source, target string) []string {
	argv := []string{toolchainPrefix + "objcopy"}
	argv = append(argv, c.flags()...)
	return append(argv, source, target)
}

// Action returns an action converting the ELF artifact of env.
func (c Converter) Action(runner Runner, toolchainPrefix string, env uploader.Env, stdout, stderr io.Writer) Action {
	source := env.ArtifactPath(uploader.ELF)
	target := env.ArtifactPath(c.target)
	return Action{
		Description: "Building " + target,
		Run: func(ctx context.Context, port string) (string, error) {
			if _, err := os.Stat(source); err != nil {
				return port, errors.Wrap(err, "no firmware to convert")
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o777); err != nil {
				return port, err
			}
			return port, runner.Run(ctx, c.Command(toolchainPrefix, source, target), stdout, stderr)
		},
	}
}
