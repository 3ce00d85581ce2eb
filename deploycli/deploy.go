package deploycli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mgutz/ansi"
	"github.com/xlab/treeprint"
	"golang.org/x/sync/errgroup"

	sentinel "github.com/davidreavis95/Sentinel-ContentAutomation"
)

// DeployOptions allows for optional flags to the Deploy command.
type DeployOptions struct {
	// Preview runs a what-if analysis before the real submission.  Preview
	// failures are reported as warnings and never block the deployment.
	Preview bool
}

// Deploy is a command line interface to drive a full deployment: authenticate,
// resolve the subscription, ensure the resource group, compile the template,
// submit, and poll until a terminal state.
func Deploy(opts *CommandOptions, deployOpts DeployOptions) (int, error) {
	if opts.ResourceGroup == "" {
		return 1, fmt.Errorf("resource group name is required")
	}
	if _, err := os.Stat(opts.ParameterFile); err != nil {
		return 1, err
	}

	ctx := context.Background()
	cli := newClient(opts)

	if err := authenticate(ctx, opts, cli); err != nil {
		return 1, err
	}

	dctx, err := resolveContext(opts, cli)
	if err != nil {
		return 1, err
	}

	params, err := sentinel.LoadParameters(opts.ParameterFile)
	if err != nil {
		return 1, err
	}
	fmt.Fprintf(opts.Stdout, "%s✓ Using parameter file: %s%s\n", ansi.Green, opts.ParameterFile, ansi.Reset)

	// The compile is a local subprocess and the resource group check is a
	// remote call; neither depends on the other.
	var template sentinel.CompiledTemplate
	var rgState sentinel.ContainerState

	var g errgroup.Group
	g.Go(func() error {
		fmt.Fprintf(opts.Stdout, "%sBuilding BICEP template...%s\n", ansi.Yellow, ansi.Reset)
		var err error
		template, err = sentinel.CompileBicep(ctx, opts.Exec, opts.TemplateFile)
		return err
	})
	g.Go(func() error {
		var err error
		rgState, err = sentinel.EnsureResourceGroup(cli, dctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return 1, err
	}

	fmt.Fprintf(opts.Stdout, "%s✓ Template compiled%s\n", ansi.Green, ansi.Reset)
	switch rgState {
	case sentinel.ContainerCreated:
		fmt.Fprintf(opts.Stdout, "%s✓ Resource group created: %s in %s%s\n", ansi.Green, dctx.ResourceGroup, dctx.Location, ansi.Reset)
	default:
		fmt.Fprintf(opts.Stdout, "%s✓ Resource group exists: %s%s\n", ansi.Green, dctx.ResourceGroup, ansi.Reset)
	}

	if deployOpts.Preview {
		result, err := sentinel.WhatIf(cli, dctx, template, params, pollOptions(opts))
		if err != nil {
			// diagnostic only, the deployment proceeds
			opts.Logger.Errorf("what-if preview failed, continuing with deployment: %s", err)
		} else {
			fmt.Fprintf(opts.Stdout, "%s✓ What-if predicts %d change(s)%s\n", ansi.Green, len(result.Changes), ansi.Reset)
		}
	}

	name := sentinel.NewDeploymentName(opts.NamePrefix, time.Now())
	fmt.Fprintf(opts.Stdout, "%sStarting deployment %s...%s\n", ansi.Yellow, name, ansi.Reset)
	fmt.Fprintf(opts.Stdout, "%sThis may take several minutes...%s\n", ansi.Yellow, ansi.Reset)

	if _, err := sentinel.SubmitDeployment(cli, dctx, name, template, params); err != nil {
		return 1, err
	}

	op, err := sentinel.AwaitCompletion(cli, dctx, name, pollOptions(opts))
	if err != nil {
		return 1, err
	}

	fmt.Fprintf(opts.Stdout, "\n%s=====================================%s\n", ansi.Cyan, ansi.Reset)
	fmt.Fprintf(opts.Stdout, "%sDeployment completed successfully!%s\n", ansi.Green, ansi.Reset)
	fmt.Fprintf(opts.Stdout, "%s=====================================%s\n\n", ansi.Cyan, ansi.Reset)

	if len(op.Outputs) > 0 {
		fmt.Fprintf(opts.Stdout, "Deployment outputs:\n%s", outputsTree(op))
	}

	return 0, nil
}

func outputsTree(op *sentinel.DeploymentOperation) string {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("%s%s%s", ansi.ColorCode("default+hb"), op.Name, ansi.Reset))

	treeprint.EdgeTypeLink = treeprint.EdgeType(fmt.Sprintf("%s%s%s", ansi.Magenta, "│", ansi.Reset))
	treeprint.EdgeTypeMid = treeprint.EdgeType(fmt.Sprintf("%s%s%s", ansi.Magenta, "├──", ansi.Reset))
	treeprint.EdgeTypeEnd = treeprint.EdgeType(fmt.Sprintf("%s%s%s", ansi.Magenta, "└──", ansi.Reset))

	for _, name := range sortedOutputNames(op.Outputs) {
		tree.AddMetaNode(name, fmt.Sprintf("%v", op.Outputs[name].Value))
	}
	return tree.String()
}

func sortedOutputNames(outputs map[string]sentinel.OutputValue) []string {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
