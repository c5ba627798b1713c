package uploader

import (
	"path/filepath"
	"strings"

	"github.com/riscv-pio/riscv-upload/boardconfig"
)

const defaultJLinkSpeed = "4000"

// JLinkScript returns the J-Link Commander script that halts the core, loads
// the given file, resets and quits.
func JLinkScript(source string) []byte {
	commands := []string{
		"h",
		"loadfile " + source,
		"r",
		"q",
	}
	return []byte(strings.Join(commands, "\n"))
}

// jlinkExecutable returns the J-Link Commander binary name for the host.
func jlinkExecutable(goos string) string {
	if goos == "windows" {
		return "JLink.exe"
	}
	return "JLinkExe"
}

func (p JLink) build(env Env, board *boardconfig.Board, project boardconfig.Project) (*Context, error) {
	device := board.JLinkDevice()
	if device == "" {
		return nil, &MissingFieldError{Protocol: p.name, Field: "debug.jlink_device"}
	}
	speed := project.DebugSpeed
	if speed == "" {
		speed = defaultJLinkSpeed
	}

	source := env.ArtifactPath(HEX)
	script := filepath.Join(env.BuildDir, "upload.jlink")
	uploader := jlinkExecutable(env.GOOS)
	flags := []string{
		"-device", device,
		"-speed", speed,
		"-if", "JTAG",
		"-jtagconf", "-1,-1",
		"-autoconnect", "1",
		"-NoGui", "1",
	}

	command := append([]string{uploader}, flags...)
	command = append(command, "-CommanderScript", script)
	return &Context{
		Protocol:      p.name,
		Uploader:      uploader,
		UploaderFlags: flags,
		Command:       command,
		Target:        HEX,
		Source:        source,
		Scripts:       []Script{{Path: script, Content: JLinkScript(source)}},
	}, nil
}
