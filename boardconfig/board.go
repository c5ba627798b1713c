// Package boardconfig loads board manifests and project options.
//
// A board manifest is loaded once per invocation and is read-only afterwards:
// accessors hand out copies, never references into the decoded manifest.
package boardconfig

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Upload is the "upload" section of a board manifest.
type Upload struct {
	Protocol          string   `yaml:"protocol"`
	Protocols         []string `yaml:"protocols"`
	DisableFlushing   bool     `yaml:"disable_flushing"`
	Use1200bpsTouch   bool     `yaml:"use_1200bps_touch"`
	WaitForUploadPort bool     `yaml:"wait_for_upload_port"`
	FlashStart        string   `yaml:"flash_start"`
	MaximumSize       int64    `yaml:"maximum_size"`
}

// Server describes how to start a debug tool.
type Server struct {
	Package    string   `yaml:"package"`
	Executable string   `yaml:"executable"`
	Arguments  []string `yaml:"arguments"`
}

// Tool is a single entry of "debug.tools".
type Tool struct {
	Server  *Server `yaml:"server"`
	Onboard bool    `yaml:"onboard"`
	Default bool    `yaml:"default"`
}

type debug struct {
	Tools       map[string]Tool `yaml:"tools"`
	JLinkDevice string          `yaml:"jlink_device"`
	DefaultTool string          `yaml:"default_tool"`
}

type build struct {
	MCU     string `yaml:"mcu"`
	FCPU    string `yaml:"f_cpu"`
	Core    string `yaml:"core"`
	Variant string `yaml:"variant"`
}

type manifest struct {
	Name   string `yaml:"name"`
	Vendor string `yaml:"vendor"`
	Build  build  `yaml:"build"`
	Upload Upload `yaml:"upload"`
	Debug  debug  `yaml:"debug"`
}

// Board is an immutable board description.
type Board struct {
	id string
	m  manifest
}

// Load reads a board manifest (JSON or YAML) from disk. The board ID is the
// file name without its extension.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read board manifest")
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	board, err := Parse(id, data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return board, nil
}

// Parse decodes a board manifest. JSON manifests are accepted as they are a
// subset of YAML.
func Parse(id string, data []byte) (*Board, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "invalid board manifest")
	}
	return &Board{id: id, m: m}, nil
}

// ID returns the board identifier.
func (b *Board) ID() string { return b.id }

// Name returns the human readable board name.
func (b *Board) Name() string { return b.m.Name }

// MCU returns the build.mcu value.
func (b *Board) MCU() string { return b.m.Build.MCU }

// Upload returns a copy of the upload section.
func (b *Board) Upload() Upload {
	u := b.m.Upload
	u.Protocols = append([]string(nil), u.Protocols...)
	return u
}

// JLinkDevice returns debug.jlink_device, which may be empty.
func (b *Board) JLinkDevice() string { return b.m.Debug.JLinkDevice }

// DefaultTool returns debug.default_tool, which may be empty.
func (b *Board) DefaultTool() string { return b.m.Debug.DefaultTool }

// Tool looks up a debug tool descriptor by protocol name.
func (b *Board) Tool(name string) (Tool, bool) {
	t, ok := b.m.Debug.Tools[name]
	if !ok {
		return Tool{}, false
	}
	if t.Server != nil {
		s := *t.Server
		s.Arguments = append([]string(nil), s.Arguments...)
		t.Server = &s
	}
	return t, true
}

// ToolNames returns the sorted names of all debug tools.
func (b *Board) ToolNames() []string {
	names := make([]string, 0, len(b.m.Debug.Tools))
	for name := range b.m.Debug.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
