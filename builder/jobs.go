package builder

// This file implements the named targets (aliases) of the pipeline and the
// sequential execution of their actions.

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrUploadBusy is returned when another upload holds the lock of the same
// build directory.
var ErrUploadBusy = errors.New("another upload is already running for this project")

// Action is a single step of an alias. It receives the current upload port
// and returns the port the following actions must use, which lets a port
// discovered during preparation flow to the uploader without shared state.
type Action struct {
	Description string
	Run         func(ctx context.Context, port string) (string, error)
}

// ActionList is an ordered list of actions.
type ActionList []Action

// Run executes the actions strictly in order, stopping at the first error.
func (l ActionList) Run(ctx context.Context, log logrus.FieldLogger, port string) (string, error) {
	for _, action := range l {
		if err := ctx.Err(); err != nil {
			return port, err
		}
		if action.Description != "" {
			log.Info(action.Description)
		}
		var err error
		port, err = action.Run(ctx, port)
		if err != nil {
			return port, err
		}
	}
	return port, nil
}

// Alias is a named target, like "upload" or "size".
type Alias struct {
	Name string

	// Deps are aliases that run first.
	Deps []string

	// Source and Outputs decide whether an alias that isn't AlwaysBuild is
	// up to date: it is when every output exists and is not older than the
	// source.
	Source  string
	Outputs []string

	Actions     ActionList
	AlwaysBuild bool

	// LockFile, when set, is held for the duration of the actions.
	LockFile string
}

// Registry collects the aliases of one invocation.
type Registry struct {
	Log      logrus.FieldLogger
	Port     string
	aliases  map[string]*Alias
	order    []string
	defaults []string
}

// NewRegistry returns an empty registry. The port is the configured upload
// port every alias starts from.
func NewRegistry(log logrus.FieldLogger, port string) *Registry {
	return &Registry{
		Log:     log,
		Port:    port,
		aliases: make(map[string]*Alias),
	}
}

// Add registers an alias, replacing any alias with the same name.
func (r *Registry) Add(a *Alias) {
	if _, ok := r.aliases[a.Name]; !ok {
		r.order = append(r.order, a.Name)
	}
	r.aliases[a.Name] = a
}

// Lookup returns the alias with the given name.
func (r *Registry) Lookup(name string) (*Alias, bool) {
	a, ok := r.aliases[name]
	return a, ok
}

// Names returns the registered alias names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Default sets the aliases that run when none are requested.
func (r *Registry) Default(names ...string) {
	r.defaults = names
}

// Run executes the requested aliases, or the defaults when names is empty.
// Dependencies run once per invocation; AlwaysBuild aliases run every time
// they are requested.
func (r *Registry) Run(ctx context.Context, names []string) error {
	if len(names) == 0 {
		names = r.defaults
	}
	done := make(map[string]bool)
	for _, name := range names {
		if err := r.run(ctx, name, done, nil); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) run(ctx context.Context, name string, done map[string]bool, stack []string) error {
	a, ok := r.aliases[name]
	if !ok {
		return errors.Errorf("unknown target %q", name)
	}
	for _, s := range stack {
		if s == name {
			return errors.Errorf("dependency cycle through target %q", name)
		}
	}
	if done[name] && !a.AlwaysBuild {
		return nil
	}
	for _, dep := range a.Deps {
		if err := r.run(ctx, dep, done, append(stack, name)); err != nil {
			return err
		}
	}
	done[name] = true

	log := r.logger().WithField("target", name)
	if !a.AlwaysBuild && a.upToDate() {
		log.Debug("target is up to date")
		return nil
	}
	if len(a.Actions) == 0 {
		return nil
	}
	if a.LockFile != "" {
		unlock, err := lock(a.LockFile)
		if err != nil {
			return err
		}
		defer unlock()
	}
	_, err := a.Actions.Run(ctx, log, r.Port)
	return err
}

func (a *Alias) upToDate() bool {
	if a.Source == "" || len(a.Outputs) == 0 {
		return false
	}
	src, err := os.Stat(a.Source)
	if err != nil {
		return false
	}
	for _, out := range a.Outputs {
		st, err := os.Stat(out)
		if err != nil || st.ModTime().Before(src.ModTime()) {
			return false
		}
	}
	return true
}

func lock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return nil, errors.Wrap(err, "could not create lock directory")
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "could not lock %s", path)
	}
	if !ok {
		return nil, ErrUploadBusy
	}
	return func() { fl.Unlock() }, nil
}

func (r *Registry) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}
