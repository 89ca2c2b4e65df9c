package kerberos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/marmos91/tgtkeep/internal/logger"
)

// ExecError describes a failed acquisition subprocess.
//
// ExitCode is -1 when the process could not be spawned or was killed
// before reporting an exit status (including context timeout).
type ExecError struct {
	Cmdline  string
	ExitCode int
	Stderr   string
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Cmdline, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// commandRunner spawns the acquisition command and waits for it.
// Tests substitute a fake to observe spawn counts without a KDC.
type commandRunner interface {
	Run(ctx context.Context, path string, args []string) error
}

// execRunner runs the command via os/exec. No shell is involved: path
// and args are passed as an argv directly.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, path string, args []string) error {
	cmd := exec.CommandContext(ctx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cmdline := strings.Join(append([]string{path}, args...), " ")

	err := cmd.Run()

	// kinit -V narrates progress on stdout; useful when debugging
	// acquisition against an unfamiliar realm.
	if out := strings.TrimSpace(stdout.String()); out != "" {
		logger.Debug("acquisition command output", logger.KeyCommand, cmdline, "output", out)
	}

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		return &ExecError{
			Cmdline:  cmdline,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}

	return nil
}
