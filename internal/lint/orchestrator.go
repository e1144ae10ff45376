package lint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/johnbasrai/cr8s-quickstart/internal/envconfig"
	"github.com/johnbasrai/cr8s-quickstart/internal/model"
	"github.com/johnbasrai/cr8s-quickstart/internal/runner"
)

// Container mount points for the scratch caches.
const (
	containerTargetDir   = "/app/target"
	containerRegistryDir = "/usr/local/cargo/registry"
)

// Orchestrator runs lint checks inside the toolchain container.
type Orchestrator struct {
	exec   runner.Executor
	cfg    *envconfig.Config
	mode   model.ExecutionMode
	logger *log.Logger

	// WorkDir holds the sources. It is mounted read-write at the same path
	// inside the container and receives the generated script.
	WorkDir string
}

// NewOrchestrator creates an Orchestrator. exec must honor the same mode;
// mode is needed here only to keep the script file off disk in dry-run.
func NewOrchestrator(exec runner.Executor, cfg *envconfig.Config, mode model.ExecutionMode, logger *log.Logger, workDir string) *Orchestrator {
	return &Orchestrator{
		exec:    exec,
		cfg:     cfg,
		mode:    mode,
		logger:  logger,
		WorkDir: workDir,
	}
}

// ScriptPath is where the generated script is written.
func (o *Orchestrator) ScriptPath() string {
	return filepath.Join(o.WorkDir, ScriptName)
}

// Run executes the checks for mode. LintNone returns immediately without
// writing anything. Otherwise the script is written, run in the toolchain
// container, echoed and removed, in that order, whatever the container
// run returns. The result is the container run's result only.
func (o *Orchestrator) Run(ctx context.Context, mode model.LintMode) error {
	steps := Steps(mode)
	if len(steps) == 0 {
		o.logger.Info("💬 Skipping lint checks", "mode", mode)
		return nil
	}

	image, err := o.cfg.Require(envconfig.KeyRustDevImage)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "lint checks need a toolchain image", err)
	}

	for _, s := range steps {
		if s.Advisory {
			o.logger.Info("advisory-only check, failures are ignored", "check", s.Command)
		}
	}

	script := Render(steps)
	path := o.ScriptPath()

	if o.mode.IsDryRun() {
		o.logger.Info("would write lint script", "path", path)
	} else {
		if err := writeScript(path, script); err != nil {
			_ = os.Remove(path)
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to write lint script %s", path), err)
		}
		o.logger.Info("generated lint script", "path", path)
	}
	defer o.cleanup(path, script)

	o.logger.Info("🧹 Running lint checks", "mode", mode, "image", image)
	return runner.Run(ctx, o.exec, o.containerInvocation(image))
}

// containerInvocation mounts the sources and both scratch caches and runs
// the script from the working directory.
func (o *Orchestrator) containerInvocation(image string) runner.Invocation {
	return runner.Command("docker",
		"run", "--rm", "-u", "root",
		"-v", o.WorkDir+":"+o.WorkDir,
		"-v", o.cfg.TargetCacheDir()+":"+containerTargetDir,
		"-v", o.cfg.RegistryCacheDir()+":"+containerRegistryDir,
		"-w", o.WorkDir,
		image,
		"./"+ScriptName,
	)
}

// cleanup echoes the script for diagnostics and removes it. Removal
// failures are logged and ignored.
func (o *Orchestrator) cleanup(path, script string) {
	o.logger.Info("lint script", "path", path, "contents", script)
	if o.mode.IsDryRun() {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		o.logger.Debug("could not remove lint script", "path", path, "err", err)
	}
}

// writeScript writes the script and marks it executable regardless of
// the process umask.
func writeScript(path, script string) error {
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return err
	}
	return os.Chmod(path, 0o755)
}
