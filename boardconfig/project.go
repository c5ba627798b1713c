package boardconfig

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Project holds the per-project options that refine a board manifest.
type Project struct {
	UploadProtocol string   `yaml:"upload_protocol"`
	UploadPort     string   `yaml:"upload_port"`
	UploadCommand  string   `yaml:"upload_command"`
	UploadFlags    []string `yaml:"upload_flags"`
	UploadTarget   string   `yaml:"upload_target"`
	DebugSpeed     string   `yaml:"debug_speed"`
	BuildDir       string   `yaml:"build_dir"`
	Progname       string   `yaml:"progname"`
}

// LoadProject reads project options from a YAML file. An empty path returns
// the zero Project.
func LoadProject(path string) (Project, error) {
	var p Project
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, errors.Wrap(err, "could not read project options")
	}
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return p, errors.Wrapf(err, "invalid project options in %s", path)
	}
	return p, nil
}

// Protocol returns the upload protocol in effect: the project option when
// set, the board default otherwise.
func (p Project) Protocol(b *Board) string {
	if p.UploadProtocol != "" {
		return p.UploadProtocol
	}
	return b.m.Upload.Protocol
}

// ProgramName returns the artifact base name, "firmware" unless overridden.
func (p Project) ProgramName() string {
	if p.Progname == "" || p.Progname == "program" {
		return "firmware"
	}
	return p.Progname
}
