package sentinel

import (
	"context"
	"encoding/json"
	"os"

	"github.com/palantir/stacktrace"
)

// CompiledTemplate is a fully resolved ARM template document.  The driver never
// interprets its content, it only transmits it.
type CompiledTemplate = json.RawMessage

// CompileBicep expands a bicep template tree (including nested module
// references) into a single ARM JSON document via `az bicep build`.  The
// compiler is a black box; on failure the raw stderr diagnostics are carried
// in the returned CompileError.
func CompileBicep(ctx context.Context, runner Executor, file string) (CompiledTemplate, error) {
	if _, err := os.Stat(file); err != nil {
		return nil, stacktrace.Propagate(&CompileError{File: file, Cause: err}, "template file not found")
	}
	if runner == nil {
		runner = OSExecutor{}
	}

	stdout, stderr, err := runner.Execute(ctx, "az", "bicep", "build", "--file", file, "--stdout")
	if err != nil {
		return nil, stacktrace.Propagate(&CompileError{
			File:        file,
			Diagnostics: string(stderr),
			Cause:       err,
		}, "bicep build failed for %s", file)
	}

	// The compiler must emit a single JSON object; anything else is a failed
	// compilation even with a zero exit code.
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(stdout, &doc); err != nil {
		return nil, stacktrace.Propagate(&CompileError{
			File:        file,
			Diagnostics: string(stderr),
			Cause:       err,
		}, "bicep build produced malformed output for %s", file)
	}

	return CompiledTemplate(stdout), nil
}
