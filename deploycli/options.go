package deploycli

import (
	"io"
	"net/http"
	"os"
	"time"

	sentinel "github.com/davidreavis95/Sentinel-ContentAutomation"
)

// CommandOptions are global options available for each command
type CommandOptions struct {
	// ResourceGroup is the target resource group name (required).
	ResourceGroup string
	// Location is the region used when the resource group must be created.
	Location string
	// ParameterFile is the path to the deployment parameter file.
	ParameterFile string
	// TemplateFile is the path to the root bicep template.
	TemplateFile string
	// SubscriptionID is the explicit target subscription; auto-resolved when empty.
	SubscriptionID string
	// NamePrefix is the human-readable prefix for generated deployment names.
	NamePrefix string
	// Interactive allows prompting to pick a subscription when resolution is
	// ambiguous instead of failing.
	Interactive bool
	// Verbose enables raw upstream payloads in log output.
	Verbose bool

	PollInterval time.Duration
	PollTimeout  time.Duration

	BaseURL    string
	HTTPClient func(*http.Request) (*http.Response, error)
	Exec       sentinel.Executor
	// Tokens overrides the default credential chain (used by tests).
	Tokens sentinel.TokenProvider

	Logger sentinel.Logger
	Stdout FdWriter
	Stderr io.Writer
	Stdin  FdReader
}

// NewCommandOptions creates a new CommandOptions struct with defaults matching
// the deployment script's conventions.
func NewCommandOptions() *CommandOptions {
	return &CommandOptions{
		Location:      "eastus",
		ParameterFile: "parameters.json",
		TemplateFile:  "main.bicep",
		NamePrefix:    "sentinel-deployment",
		HTTPClient:    http.DefaultClient.Do,
		Exec:          sentinel.OSExecutor{},
		Logger:        sentinel.NewDefaultLogger(false),
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		Stdin:         os.Stdin,
	}
}

// FdWriter represents an io.Writer with a Fd property. (*os.File implements this)
type FdWriter interface {
	io.Writer
	Fd() uintptr
}

// FdReader represents an io.Reader with a Fd property. (*os.File implements this)
type FdReader interface {
	io.Reader
	Fd() uintptr
}

func newClient(opts *CommandOptions) *sentinel.Client {
	tokens := opts.Tokens
	if tokens == nil {
		tokens = sentinel.NewDefaultChain(opts.Exec, opts.HTTPClient)
	}
	return sentinel.NewClient(
		sentinel.WithBaseURL(opts.BaseURL),
		sentinel.WithHTTPClient(opts.HTTPClient),
		sentinel.WithTokenProvider(tokens),
	)
}

func pollOptions(opts *CommandOptions) sentinel.PollOptions {
	return sentinel.PollOptions{
		Interval: opts.PollInterval,
		Timeout:  opts.PollTimeout,
		Logger:   opts.Logger,
	}
}
