package sentinel

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/palantir/stacktrace"
	"github.com/stretchr/testify/require"
)

func writeTempBicep(t *testing.T) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "main.bicep")
	require.NoError(t, ioutil.WriteFile(file, []byte("param location string = resourceGroup().location\n"), 0644))
	return file
}

func TestCompileBicep(t *testing.T) {
	armJSON := `{"$schema": "https://schema.management.azure.com/schemas/2019-04-01/deploymentTemplate.json#", "resources": []}`
	runner := &fakeExecutor{stdout: []byte(armJSON)}
	file := writeTempBicep(t)

	template, err := CompileBicep(context.Background(), runner, file)
	require.NoError(t, err)
	require.JSONEq(t, armJSON, string(template))

	require.Len(t, runner.calls, 1)
	require.Equal(t, []string{"az", "bicep", "build", "--file", file, "--stdout"}, runner.calls[0])
}

func TestCompileBicepCompilerFailure(t *testing.T) {
	runner := &fakeExecutor{
		stderr: []byte(`main.bicep(4,12) : Error BCP018: Expected the "=" character at this location.`),
		err:    stacktrace.NewError("exit status 1"),
	}
	file := writeTempBicep(t)

	_, err := CompileBicep(context.Background(), runner, file)
	require.Error(t, err)

	compileErr, ok := stacktrace.RootCause(err).(*CompileError)
	require.True(t, ok, "expected CompileError, got %T", stacktrace.RootCause(err))
	require.Contains(t, compileErr.Diagnostics, "BCP018")
	require.Contains(t, compileErr.Error(), "BCP018")
}

func TestCompileBicepMalformedOutput(t *testing.T) {
	runner := &fakeExecutor{stdout: []byte("WARNING: something unrelated\n")}
	file := writeTempBicep(t)

	_, err := CompileBicep(context.Background(), runner, file)
	require.Error(t, err)
	_, ok := stacktrace.RootCause(err).(*CompileError)
	require.True(t, ok, "expected CompileError, got %T", stacktrace.RootCause(err))
}

func TestCompileBicepMissingFile(t *testing.T) {
	runner := &fakeExecutor{}

	_, err := CompileBicep(context.Background(), runner, filepath.Join(t.TempDir(), "missing.bicep"))
	require.Error(t, err)
	_, ok := stacktrace.RootCause(err).(*CompileError)
	require.True(t, ok, "expected CompileError, got %T", stacktrace.RootCause(err))
	require.Empty(t, runner.calls, "the compiler must not run when the file is missing")
}
