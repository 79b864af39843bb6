// Package build drives the package's dependency manager: installing
// dependencies and running the build script inside an extracted source tree.
//
// Every operation takes the package directory explicitly. Nothing here
// changes the process working directory, so concurrent publishes cannot
// step on each other.
package build

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/teranos/snpm/errors"
	"go.uber.org/zap"
)

// outputLimit bounds the captured tool output per command
const outputLimit = 8 * 1024

// Config describes how to invoke the dependency manager
type Config struct {
	InstallCommand string // e.g. "npm install --no-audit --no-fund"
	RunCommand     string // e.g. "npm run --silent"; the script name is appended
	Script         string // build script name, e.g. "build"
	ManifestFile   string // e.g. "package.json"
}

// quietEnv keeps npm-compatible tools non-interactive and silent
var quietEnv = []string{
	"CI=true",
	"npm_config_loglevel=silent",
	"npm_config_progress=false",
	"npm_config_yes=true",
	"npm_config_fund=false",
	"npm_config_audit=false",
	"npm_config_update_notifier=false",
}

// Orchestrator runs dependency installation and the build script
type Orchestrator struct {
	installArgv  []string
	runArgv      []string
	script       string
	manifestFile string
	env          []string
	logger       *zap.SugaredLogger
	lookPath     func(string) (string, error)
}

// NewOrchestrator parses the configured command lines
func NewOrchestrator(cfg Config, logger *zap.SugaredLogger) (*Orchestrator, error) {
	installArgv, err := splitCommand("install command", cfg.InstallCommand)
	if err != nil {
		return nil, err
	}
	runArgv, err := splitCommand("run command", cfg.RunCommand)
	if err != nil {
		return nil, err
	}
	if cfg.Script == "" {
		return nil, errors.New("build script name cannot be empty")
	}

	manifestFile := cfg.ManifestFile
	if manifestFile == "" {
		manifestFile = "package.json"
	}

	return &Orchestrator{
		installArgv:  installArgv,
		runArgv:      runArgv,
		script:       cfg.Script,
		manifestFile: manifestFile,
		env:          append(os.Environ(), quietEnv...),
		logger:       logger,
		lookPath:     exec.LookPath,
	}, nil
}

func splitCommand(what, line string) ([]string, error) {
	argv, err := shellquote.Split(line)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s %q", what, line)
	}
	if len(argv) == 0 {
		return nil, errors.Newf("%s cannot be empty", what)
	}
	return argv, nil
}

// Configure checks that the tool binaries resolve. The non-interactive,
// silent environment is fixed at construction.
func (o *Orchestrator) Configure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Mark(err, errors.ErrDependencyInstall)
	}

	for _, argv := range [][]string{o.installArgv, o.runArgv} {
		resolved, err := o.lookPath(argv[0])
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "dependency manager %q not found", argv[0]), errors.ErrDependencyInstall)
		}
		o.logger.Debugw("Resolved build tool", "tool", argv[0], "path", resolved)
	}
	return nil
}

// ManifestPath returns the manifest location inside dir
func (o *Orchestrator) ManifestPath(dir string) string {
	return filepath.Join(dir, o.manifestFile)
}

// ReadManifest reads the package manifest inside dir
func (o *Orchestrator) ReadManifest(dir string) (*Manifest, error) {
	return ReadManifest(o.ManifestPath(dir))
}

// Install installs the package's declared dependencies into dir
func (o *Orchestrator) Install(ctx context.Context, dir string) error {
	if err := o.exec(ctx, dir, o.installArgv); err != nil {
		return errors.Mark(err, errors.ErrDependencyInstall)
	}
	return nil
}

// Run executes the configured build script inside dir
func (o *Orchestrator) Run(ctx context.Context, dir string) error {
	argv := append(append([]string{}, o.runArgv...), o.script)
	if err := o.exec(ctx, dir, argv); err != nil {
		return errors.Mark(err, errors.ErrBuild)
	}
	return nil
}

func (o *Orchestrator) exec(ctx context.Context, dir string, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = o.env
	// Let killed tools release their pipes instead of hanging Wait
	cmd.WaitDelay = 5 * time.Second

	output := newTailBuffer(outputLimit)
	cmd.Stdout = output
	cmd.Stderr = output

	commandLine := strings.Join(argv, " ")
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		o.logger.Warnw("Build tool command failed",
			"command", commandLine,
			"dir", dir,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
			"output", output.String(),
		)
		return errors.WithDetail(errors.Wrapf(err, "%s", commandLine), output.String())
	}

	o.logger.Debugw("Build tool command finished",
		"command", commandLine,
		"dir", dir,
		"duration_ms", elapsed.Milliseconds(),
		"output", output.String(),
	)
	return nil
}
