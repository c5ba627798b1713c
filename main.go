package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/pkg/errors"
	"github.com/riscv-pio/riscv-upload/boardconfig"
	"github.com/riscv-pio/riscv-upload/builder"
	"github.com/riscv-pio/riscv-upload/diagnostics"
	"github.com/riscv-pio/riscv-upload/goenv"
	"github.com/riscv-pio/riscv-upload/pipdeps"
	"github.com/riscv-pio/riscv-upload/serialport"
	"github.com/riscv-pio/riscv-upload/uploader"
	"github.com/sirupsen/logrus"
)

func usage(w io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(w, "riscv-upload prepares a board and flashes a built RISC-V firmware.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  riscv-upload [flags] [target...]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "targets:")
	fmt.Fprintln(w, "  buildprog  convert the linked ELF to HEX and BIN (default)")
	fmt.Fprintln(w, "  size       print the firmware section sizes (default)")
	fmt.Fprintln(w, "  nobuild    use the existing artifacts as they are")
	fmt.Fprintln(w, "  upload     flash the firmware with the configured protocol")
	fmt.Fprintln(w, "  ports      list the serial ports of this host")
	fmt.Fprintln(w, "  env        list the environment used by riscv-upload")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "flags:")
	flags.SetOutput(w)
	flags.PrintDefaults()
}

// options collects the command line.
type options struct {
	board    string
	project  string
	port     string
	protocol string
	buildDir string
	timeout  time.Duration
	verbose  bool
	targets  []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	flags := flag.NewFlagSet("riscv-upload", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.board, "board", "", "board manifest (YAML or JSON)")
	flags.StringVar(&opts.project, "project", "", "project options (YAML)")
	flags.StringVar(&opts.port, "port", "", "upload port, overrides upload_port")
	flags.StringVar(&opts.protocol, "protocol", "", "upload protocol, overrides upload_protocol")
	flags.StringVar(&opts.buildDir, "build-dir", "", "build directory, overrides build_dir and BUILD_DIR")
	flags.DurationVar(&opts.timeout, "timeout", serialport.DefaultTimeout, "how long to wait for the upload port to appear")
	flags.BoolVar(&opts.verbose, "v", goenv.Verbose(), "verbose output")
	flags.Usage = func() { usage(stderr, flags) }
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	opts.targets = flags.Args()
	return opts, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, colorable.NewColorableStderr())
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if opts.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if len(opts.targets) == 1 {
		switch opts.targets[0] {
		case "env":
			printEnv(stdout)
			return 0
		case "ports":
			if err := printPorts(stdout, serialport.OSLister{}); err != nil {
				return fail(stderr, "", err)
			}
			return 0
		}
	}

	wd, _ := os.Getwd()
	if err := upload(ctx, opts, log, stdout, stderr); err != nil {
		return fail(stderr, wd, err)
	}
	return 0
}

func upload(ctx context.Context, opts *options, log *logrus.Logger, stdout, stderr io.Writer) error {
	if opts.board == "" {
		return errors.New("no board manifest given, use -board")
	}
	board, err := boardconfig.Load(opts.board)
	if err != nil {
		return err
	}
	project, err := boardconfig.LoadProject(opts.project)
	if err != nil {
		return err
	}
	if opts.protocol != "" {
		project.UploadProtocol = opts.protocol
	}
	if opts.port != "" {
		project.UploadPort = opts.port
	}

	env := uploader.Env{
		GOOS:        runtime.GOOS,
		BuildDir:    goenv.Get("BUILD_DIR"),
		PackagesDir: goenv.Get("PACKAGES_DIR"),
		PythonExe:   goenv.Get("PYTHONEXE"),
		Progname:    project.ProgramName(),
		Verbose:     opts.verbose,
	}
	if project.BuildDir != "" {
		env.BuildDir = project.BuildDir
	}
	if opts.buildDir != "" {
		env.BuildDir = opts.buildDir
	}
	log.WithFields(logrus.Fields{"board": board.ID(), "build_dir": env.BuildDir}).Debug("configuration loaded")

	nobuild := hasTarget(opts.targets, "nobuild")
	runner := builder.ExecRunner{}
	r := builder.NewRegistry(log, project.UploadPort)
	builder.Targets{
		Env:             env,
		ToolchainPrefix: goenv.Get("TOOLCHAIN_PREFIX"),
		Runner:          runner,
		Stdout:          stdout,
		Stderr:          stderr,
	}.Register(r, nobuild)

	uctx, err := uploader.Select(env, board, project)
	var unknown *uploader.UnknownProtocolError
	switch {
	case errors.As(err, &unknown):
		log.Warnf("Unknown upload protocol %s", unknown.Protocol)
		r.Add(&builder.Alias{Name: "upload", Deps: builder.UploadDeps(nobuild), AlwaysBuild: true})
	case err != nil:
		if hasTarget(opts.targets, "upload") {
			return err
		}
		log.WithError(err).Debug("upload target unavailable")
	default:
		exec := builder.NewExecutor(board, runner, log)
		exec.Sequencer.Timeout = opts.timeout
		exec.Stdout = stdout
		exec.Stderr = stderr
		if uctx.PythonDeps {
			exec.Deps = &pipdeps.Checker{
				Python:       env.PythonExe,
				Requirements: pipdeps.FlasherRequirements,
				Runner:       runner,
				Log:          log,
				Stdout:       stdout,
				Stderr:       stderr,
			}
		}
		lockFile := filepath.Join(env.BuildDir, ".upload.lock")
		exec.Register(r, uctx, lockFile, builder.UploadDeps(nobuild)...)
	}

	return r.Run(ctx, opts.targets)
}

func hasTarget(targets []string, name string) bool {
	for _, t := range targets {
		if t == name {
			return true
		}
	}
	return false
}

func printEnv(w io.Writer) {
	for _, key := range goenv.Keys {
		fmt.Fprintf(w, "%s=%q\n", key, goenv.Get(key))
	}
}

func printPorts(w io.Writer, l serialport.DetailedLister) error {
	ports, err := l.ListDetailed()
	if err != nil {
		return err
	}
	for _, p := range ports {
		line := p.Name
		if p.IsUSB {
			line += fmt.Sprintf("\tUSB %s:%s", p.VID, p.PID)
			if p.SerialNumber != "" {
				line += " " + p.SerialNumber
			}
			if p.Product != "" {
				line += " " + p.Product
			}
		}
		fmt.Fprintln(w, strings.TrimSpace(line))
	}
	return nil
}

func fail(stderr io.Writer, wd string, err error) int {
	diag := diagnostics.CreateDiagnostics(err)
	diag.WriteTo(stderr, wd)
	return diag.Code
}
