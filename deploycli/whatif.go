package deploycli

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/mgutz/ansi"
	"github.com/xlab/treeprint"
	"golang.org/x/sync/errgroup"

	sentinel "github.com/davidreavis95/Sentinel-ContentAutomation"
)

// WhatIf is a command line interface to run a dry-run analysis of the
// deployment and display the predicted change set without mutating anything
// beyond the resource group itself.
func WhatIf(opts *CommandOptions) (int, error) {
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

	var template sentinel.CompiledTemplate
	var g errgroup.Group
	g.Go(func() error {
		fmt.Fprintf(opts.Stdout, "%sBuilding BICEP template...%s\n", ansi.Yellow, ansi.Reset)
		var err error
		template, err = sentinel.CompileBicep(ctx, opts.Exec, opts.TemplateFile)
		return err
	})
	g.Go(func() error {
		_, err := sentinel.EnsureResourceGroup(cli, dctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return 1, err
	}

	fmt.Fprintf(opts.Stdout, "%sRunning deployment validation (What-If)...%s\n", ansi.Yellow, ansi.Reset)
	result, err := sentinel.WhatIf(cli, dctx, template, params, pollOptions(opts))
	if err != nil {
		return 1, err
	}

	fmt.Fprintf(opts.Stdout, "%s✓ Deployment validation successful%s\n", ansi.Green, ansi.Reset)
	fmt.Fprintf(opts.Stdout, "Predicted changes:\n%s", changesTree(dctx, result))
	return 0, nil
}

func changeColor(kind sentinel.ChangeType) string {
	switch kind {
	case sentinel.ChangeTypeCreate, sentinel.ChangeTypeDeploy:
		return ansi.Green
	case sentinel.ChangeTypeDelete:
		return ansi.Red
	case sentinel.ChangeTypeModify:
		return ansi.Yellow
	}
	return ansi.ColorCode("default")
}

func changesTree(dctx *sentinel.DeploymentContext, result *sentinel.WhatIfResult) string {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("%s%s%s", ansi.ColorCode("default+hb"), dctx.ResourceGroup, ansi.Reset))

	treeprint.EdgeTypeLink = treeprint.EdgeType(fmt.Sprintf("%s%s%s", ansi.Magenta, "│", ansi.Reset))
	treeprint.EdgeTypeMid = treeprint.EdgeType(fmt.Sprintf("%s%s%s", ansi.Magenta, "├──", ansi.Reset))
	treeprint.EdgeTypeEnd = treeprint.EdgeType(fmt.Sprintf("%s%s%s", ansi.Magenta, "└──", ansi.Reset))

	// group resources by change kind so the tree reads like a summary
	byKind := map[sentinel.ChangeType][]sentinel.ResourceChange{}
	for _, change := range result.Changes {
		byKind[change.ChangeType] = append(byKind[change.ChangeType], change)
	}
	kinds := make([]string, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		changeType := sentinel.ChangeType(kind)
		color := changeColor(changeType)
		branch := tree.AddBranch(fmt.Sprintf("%s%s%s", color, kind, ansi.Reset))
		for _, change := range byKind[changeType] {
			if len(change.Delta) == 0 {
				branch.AddNode(change.ResourceID)
				continue
			}
			resBranch := branch.AddBranch(change.ResourceID)
			for _, delta := range change.Delta {
				resBranch.AddNode(fmt.Sprintf("%s: %v => %v", delta.Path, delta.Before, delta.After))
			}
		}
	}
	return tree.String()
}
