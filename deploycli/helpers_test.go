package deploycli

import (
	"bytes"
	"context"
	"time"
)

const testSubscriptionID = "1b9d41a2-6a3c-4d4e-9d3f-0f6e2a7c5b41"

const testTemplateJSON = `{"$schema": "https://schema.management.azure.com/schemas/2019-04-01/deploymentTemplate.json#", "resources": []}`

// staticTokens satisfies sentinel.TokenProvider with a fixed token.
type staticTokens string

func (staticTokens) Name() string                            { return "static" }
func (t staticTokens) Token(context.Context) (string, error) { return string(t), nil }

// fakeExecutor replays canned compiler output instead of shelling out.
type fakeExecutor struct {
	calls  [][]string
	stdout []byte
	stderr []byte
	err    error
}

func (f *fakeExecutor) Execute(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.stdout, f.stderr, f.err
}

// fdBuffer is an in-memory FdWriter for capturing command output.
type fdBuffer struct {
	bytes.Buffer
}

func (*fdBuffer) Fd() uintptr { return 0 }

func newTestOptions(baseURL string) (*CommandOptions, *fdBuffer) {
	out := &fdBuffer{}
	opts := NewCommandOptions()
	opts.BaseURL = baseURL
	opts.ResourceGroup = "test-rg"
	opts.ParameterFile = "../test-files/deploy/parameters.json"
	opts.TemplateFile = "../test-files/deploy/main.bicep"
	opts.Tokens = staticTokens("test-token")
	opts.Exec = &fakeExecutor{stdout: []byte(testTemplateJSON)}
	opts.PollInterval = time.Millisecond
	opts.PollTimeout = time.Second
	opts.Stdout = out
	return opts, out
}
