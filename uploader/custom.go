package uploader

import (
	"strings"

	"github.com/google/shlex"
	"github.com/pkg/errors"
	"github.com/riscv-pio/riscv-upload/boardconfig"
)

// build splits the configured upload_command into an argv. $SOURCE,
// $BUILD_DIR and $UPLOAD_FLAGS are expanded now; $UPLOAD_PORT is left for
// the executor since the port may change during port preparation.
func (Custom) build(env Env, board *boardconfig.Board, project boardconfig.Project) (*Context, error) {
	if strings.TrimSpace(project.UploadCommand) == "" {
		return nil, &MissingFieldError{Protocol: "custom", Field: "upload_command"}
	}
	target := ELF
	if project.UploadTarget != "" {
		var err error
		target, err = ParseArtifact(project.UploadTarget)
		if err != nil {
			return nil, err
		}
	}
	source := env.ArtifactPath(target)

	tokens, err := shlex.Split(project.UploadCommand)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse upload_command")
	}
	vars := strings.NewReplacer(
		"${SOURCE}", source,
		"$SOURCE", source,
		"${BUILD_DIR}", env.BuildDir,
		"$BUILD_DIR", env.BuildDir,
		"${UPLOAD_PORT}", PortPlaceholder,
	)
	var command []string
	for _, token := range tokens {
		if token == "$UPLOAD_FLAGS" || token == "${UPLOAD_FLAGS}" {
			command = append(command, project.UploadFlags...)
			continue
		}
		command = append(command, vars.Replace(token))
	}
	if len(command) == 0 {
		return nil, &MissingFieldError{Protocol: "custom", Field: "upload_command"}
	}

	upload := board.Upload()
	prep := PortPrepNone
	if upload.Use1200bpsTouch || upload.WaitForUploadPort {
		prep = PortPrepReset
	}
	return &Context{
		Protocol:      "custom",
		Uploader:      command[0],
		UploaderFlags: append([]string(nil), project.UploadFlags...),
		Command:       command,
		Target:        target,
		Source:        source,
		PortPrep:      prep,
	}, nil
}
