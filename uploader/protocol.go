package uploader

import (
	"strings"

	"github.com/riscv-pio/riscv-upload/boardconfig"
)

// SerialFlasherProtocol is the protocol name of the BL60x Python flasher.
const SerialFlasherProtocol = "bl60x-flash"

// Protocol is one upload method. The set of implementations is closed: every
// protocol name resolves to exactly one of JLink, Renode, OpenOCD,
// SerialFlasher, Custom or Unknown.
type Protocol interface {
	Name() string
	build(env Env, board *boardconfig.Board, project boardconfig.Project) (*Context, error)
}

// JLink uploads a HEX file through a generated J-Link Commander script.
type JLink struct {
	name string
}

// Renode loads the ELF file into the Renode simulator.
type Renode struct {
	Tool boardconfig.Tool
}

// OpenOCD programs a HEX file through OpenOCD using a board debug tool.
type OpenOCD struct {
	name string
	Tool boardconfig.Tool
}

// SerialFlasher runs the BL60x Python flasher over a serial port.
type SerialFlasher struct{}

// Custom runs the command configured in the project verbatim.
type Custom struct{}

// Unknown is any protocol not recognized.
type Unknown struct {
	name string
}

func (p JLink) Name() string { return p.name }
func (Renode) Name() string { return "renode" }
func (p OpenOCD) Name() string { return p.name }
func (SerialFlasher) Name() string { return SerialFlasherProtocol }
func (Custom) Name() string { return "custom" }
func (p Unknown) Name() string { return p.name }

// Resolve maps a protocol name to its upload method. The checks run in a
// fixed priority order, so a debug tool named "custom" still uses OpenOCD.
func Resolve(name string, board *boardconfig.Board) Protocol {
	if strings.HasPrefix(name, "jlink") {
		return JLink{name: name}
	}
	if tool, ok := board.Tool(name); ok {
		if name == "renode" {
			return Renode{Tool: tool}
		}
		return OpenOCD{name: name, Tool: tool}
	}
	switch name {
	case SerialFlasherProtocol:
		return SerialFlasher{}
	case "custom":
		return Custom{}
	}
	return Unknown{name: name}
}

// Select resolves the protocol in effect for the project and builds its
// upload context. An unrecognized protocol returns *UnknownProtocolError.
func Select(env Env, board *boardconfig.Board, project boardconfig.Project) (*Context, error) {
	p := Resolve(project.Protocol(board), board)
	return p.build(env, board, project)
}

func (p Unknown) build(env Env, board *boardconfig.Board, project boardconfig.Project) (*Context, error) {
	return nil, &UnknownProtocolError{Protocol: p.name}
}
