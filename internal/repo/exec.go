package repo

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

// Runner executes the external commands the pipeline depends on,
// rsync and createrepo_c. Tests substitute a recording fake.
type Runner interface {
	// Run executes a command, streaming its output to the terminal.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes a command and returns its captured stdout.
	// Stderr still reaches the terminal.
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands on the local system.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	slog.Info("running command", "command", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Mark(
			errors.Wrapf(err, "%s %s", name, strings.Join(args, " ")), ErrExternalTool)
	}
	return nil
}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	slog.Debug("running command", "command", name, "args", strings.Join(args, " "))

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Mark(
			errors.Wrapf(err, "%s %s", name, strings.Join(args, " ")), ErrExternalTool)
	}
	return stdout.String(), nil
}
