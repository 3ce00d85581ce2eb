package deploycli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	sentinel "github.com/davidreavis95/Sentinel-ContentAutomation"
)

// Compile is a command line interface to build the bicep template and print
// the resolved ARM document to stdout.
func Compile(opts *CommandOptions) (int, error) {
	template, err := sentinel.CompileBicep(context.Background(), opts.Exec, opts.TemplateFile)
	if err != nil {
		return 1, err
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, template, "", "  "); err != nil {
		return 1, err
	}
	fmt.Fprintf(opts.Stdout, "%s\n", indented.String())
	return 0, nil
}
