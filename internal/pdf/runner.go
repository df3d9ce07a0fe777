package pdf

import (
	"bytes"
	"context"
	"os/exec"

	"certos/internal/port"
)

// ExecRunner runs external binaries via os/exec.
type ExecRunner struct{}

// NewExecRunner creates the default CommandRunner.
func NewExecRunner() port.CommandRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
