package uploader

import (
	"fmt"

	"github.com/riscv-pio/riscv-upload/boardconfig"
)

// openocdPackage is the tool package holding the RISC-V OpenOCD scripts.
const openocdPackage = "tool-openocd-riscv"

func serverArguments(protocol string, tool boardconfig.Tool) ([]string, error) {
	if tool.Server == nil {
		return nil, &MissingFieldError{
			Protocol: protocol,
			Field:    "debug.tools." + protocol + ".server",
		}
	}
	return tool.Server.Arguments, nil
}

func (p Renode) build(env Env, board *boardconfig.Board, project boardconfig.Project) (*Context, error) {
	args, err := serverArguments("renode", p.Tool)
	if err != nil {
		return nil, err
	}
	source := env.ArtifactPath(ELF)

	// The GUI is fine when uploading; it only gets in the way of debugging.
	var flags []string
	for _, arg := range args {
		if arg != "--disable-xwt" {
			flags = append(flags, arg)
		}
	}
	flags = append(flags,
		"-e", "sysbus LoadELF @"+source,
		"-e", "start",
	)
	return &Context{
		Protocol:      "renode",
		Uploader:      "renode",
		UploaderFlags: flags,
		Command:       append([]string{"renode"}, flags...),
		Target:        ELF,
		Source:        source,
	}, nil
}

func (p OpenOCD) build(env Env, board *boardconfig.Board, project boardconfig.Project) (*Context, error) {
	args, err := serverArguments(p.name, p.Tool)
	if err != nil {
		return nil, err
	}
	flashStart := board.Upload().FlashStart
	if flashStart == "" {
		return nil, &MissingFieldError{Protocol: p.name, Field: "upload.flash_start"}
	}
	source := env.ArtifactPath(HEX)

	debugLevel := 1
	if env.Verbose {
		debugLevel = 2
	}
	flags := []string{
		"-c", fmt.Sprintf("debug_level %d", debugLevel),
		"-s", env.PackageDir(openocdPackage),
	}
	flags = append(flags, args...)
	if project.DebugSpeed != "" {
		flags = append(flags, "-c", "adapter_khz "+project.DebugSpeed)
	}
	flags = append(flags, "-c", fmt.Sprintf("program {%s} %s verify; shutdown;", source, flashStart))

	return &Context{
		Protocol:      p.name,
		Uploader:      "openocd",
		UploaderFlags: flags,
		Command:       append([]string{"openocd"}, flags...),
		Target:        HEX,
		Source:        source,
	}, nil
}
