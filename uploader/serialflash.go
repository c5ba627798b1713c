package uploader

import (
	"path/filepath"

	"github.com/riscv-pio/riscv-upload/boardconfig"
)

const (
	flasherPackage = "tool-bl60x-flash"
	flasherScript  = "bl602-flasher.py"
)

func (SerialFlasher) build(env Env, board *boardconfig.Board, project boardconfig.Project) (*Context, error) {
	if env.PythonExe == "" {
		return nil, &MissingFieldError{Protocol: SerialFlasherProtocol, Field: "PYTHONEXE"}
	}
	source := env.ArtifactPath(BIN)
	uploader := filepath.Join(env.PackageDir(flasherPackage), flasherScript)
	flags := append([]string(nil), project.UploadFlags...)

	command := []string{env.PythonExe, uploader}
	command = append(command, flags...)
	command = append(command, PortPlaceholder, source)
	return &Context{
		Protocol:      SerialFlasherProtocol,
		Uploader:      uploader,
		UploaderFlags: flags,
		Command:       command,
		Target:        BIN,
		Source:        source,
		PortPrep:      PortPrepAutodetect,
		PythonDeps:    true,
	}, nil
}
