package builder

import (
	"context"
	"io"

	"github.com/riscv-pio/riscv-upload/uploader"
)

// Targets registers the non-upload aliases of a project.
type Targets struct {
	Env             uploader.Env
	ToolchainPrefix string
	Runner          Runner
	Stdout          io.Writer
	Stderr          io.Writer
}

// Register adds "buildprog", "nobuild" and "size" and makes buildprog and
// size the defaults. With nobuild set the existing artifacts are used as they
// are and no conversion runs.
func (t Targets) Register(r *Registry, nobuild bool) {
	elfPath := t.Env.ArtifactPath(uploader.ELF)

	buildprog := &Alias{Name: "buildprog"}
	if !nobuild {
		buildprog.Source = elfPath
		buildprog.Outputs = []string{
			t.Env.ArtifactPath(uploader.HEX),
			t.Env.ArtifactPath(uploader.BIN),
		}
		buildprog.Actions = ActionList{
			ElfToHex.Action(t.Runner, t.ToolchainPrefix, t.Env, t.Stdout, t.Stderr),
			ElfToBin.Action(t.Runner, t.ToolchainPrefix, t.Env, t.Stdout, t.Stderr),
		}
	}
	r.Add(buildprog)

	r.Add(&Alias{Name: "nobuild", AlwaysBuild: true})

	r.Add(&Alias{
		Name:        "size",
		Source:      elfPath,
		AlwaysBuild: true,
		Actions: ActionList{{
			Description: "Calculating size " + elfPath,
			Run: func(ctx context.Context, port string) (string, error) {
				argv := []string{t.ToolchainPrefix + "size", "-d", elfPath}
				return port, t.Runner.Run(ctx, argv, t.output(t.Stdout), t.output(t.Stderr))
			},
		}},
	})

	r.Default("buildprog", "size")
}

// UploadDeps returns the aliases the upload target depends on.
func UploadDeps(nobuild bool) []string {
	if nobuild {
		return nil
	}
	return []string{"buildprog"}
}

func (t Targets) output(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
