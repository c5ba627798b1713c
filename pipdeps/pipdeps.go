// Package pipdeps makes sure the Python packages needed by script based
// flashers are installed before the flasher starts.
package pipdeps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/mod/semver"
)

// Requirement is a package with a minimum version.
type Requirement struct {
	Name       string
	MinVersion string
}

func (r Requirement) String() string {
	if r.MinVersion == "" {
		return r.Name
	}
	return r.Name + ">=" + r.MinVersion
}

// FlasherRequirements are the packages required by the BL60x flasher script.
var FlasherRequirements = []Requirement{
	{Name: "tqdm", MinVersion: "4.62.2"},
}

// Runner runs a command, writing its output to the given writers.
type Runner interface {
	Run(ctx context.Context, argv []string, stdout, stderr io.Writer) error
}

// DependencyError is returned when required packages could not be installed.
type DependencyError struct {
	Packages []Requirement
	Err      error
}

func (e *DependencyError) Error() string {
	names := make([]string, len(e.Packages))
	for i, p := range e.Packages {
		names[i] = p.String()
	}
	return fmt.Sprintf("could not install Python dependencies %s: %v", strings.Join(names, ", "), e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// Checker checks and installs Python packages with pip.
type Checker struct {
	Python       string
	Requirements []Requirement
	Runner       Runner
	Log          logrus.FieldLogger
	Stdout       io.Writer
	Stderr       io.Writer
}

// Ensure installs every requirement that is missing or too old.
func (c *Checker) Ensure(ctx context.Context) error {
	installed := c.installed(ctx)
	var missing []Requirement
	for _, req := range c.Requirements {
		version, ok := installed[strings.ToLower(req.Name)]
		if !ok || !satisfies(version, req.MinVersion) {
			missing = append(missing, req)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	argv := []string{c.Python, "-m", "pip", "install", "-U", "--force-reinstall"}
	for _, req := range missing {
		argv = append(argv, req.String())
	}
	c.logger().WithField("packages", argv[6:]).Info("Installing flasher Python dependencies")
	if err := c.Runner.Run(ctx, argv, c.output(c.Stdout), c.output(c.Stderr)); err != nil {
		return &DependencyError{Packages: missing, Err: err}
	}
	return nil
}

// installed returns the installed packages keyed by lower-case name. A pip
// listing that fails or can't be parsed is reported and treated as empty,
// so that everything gets (re)installed.
func (c *Checker) installed(ctx context.Context) map[string]string {
	var stdout bytes.Buffer
	argv := []string{c.Python, "-m", "pip", "list", "--format=json"}
	if err := c.Runner.Run(ctx, argv, &stdout, c.output(c.Stderr)); err != nil {
		c.logger().WithError(err).Warn("couldn't list the installed Python packages")
		return nil
	}
	var packages []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &packages); err != nil {
		c.logger().WithError(err).Warn("couldn't extract the list of installed Python packages")
		return nil
	}
	result := make(map[string]string, len(packages))
	for _, p := range packages {
		result[strings.ToLower(p.Name)] = p.Version
	}
	return result
}

// satisfies reports whether the installed pip version is at least min.
func satisfies(version, min string) bool {
	if min == "" {
		return true
	}
	v, m := toSemver(version), toSemver(min)
	if !semver.IsValid(v) || !semver.IsValid(m) {
		return false
	}
	return semver.Compare(v, m) >= 0
}

// toSemver converts a PEP 440 release like "4.62.2.post1" or "1.0rc1" to the
// closest semantic version ("v4.62.2", "v1.0"). Only the numeric release
// segments are kept.
func toSemver(version string) string {
	var parts []string
	for _, segment := range strings.SplitN(version, ".", 4) {
		digits := segment
		for i, r := range segment {
			if r < '0' || r > '9' {
				digits = segment[:i]
				break
			}
		}
		if digits == "" {
			break
		}
		parts = append(parts, strings.TrimLeft(digits, "0"))
		if parts[len(parts)-1] == "" {
			parts[len(parts)-1] = "0"
		}
		if len(parts) == 3 || digits != segment {
			break
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "v" + strings.Join(parts, ".")
}

func (c *Checker) output(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

func (c *Checker) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}
