package sentinel

import (
	"bytes"
	"context"
	"os/exec"
)

// Executor abstracts external command invocation (the az CLI for bicep builds
// and session tokens) so tests can substitute a fake.
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// OSExecutor runs commands on the local system.
type OSExecutor struct{}

var _ Executor = OSExecutor{}

// Execute runs the command and returns stdout and stderr separately.
func (OSExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}
