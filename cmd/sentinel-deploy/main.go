package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/palantir/stacktrace"

	sentinel "github.com/davidreavis95/Sentinel-ContentAutomation"
	"github.com/davidreavis95/Sentinel-ContentAutomation/deploycli"
)

func main() {
	opts := deploycli.NewCommandOptions()

	globalFlags := flag.NewFlagSet("", flag.ContinueOnError)

	globalFlags.StringVar(&opts.BaseURL, "baseurl", "", "base URL to reach the Azure management API")
	globalFlags.BoolVar(&opts.Verbose, "v", false, "enable verbose output")

	globalFlags.Parse(os.Args[1:])
	args := globalFlags.Args()

	opts.Logger = sentinel.NewDefaultLogger(opts.Verbose)

	if len(args) < 1 {
		fmt.Printf("Usage: %s [flags] deploy|whatif|compile|subscriptions\n", filepath.Base(os.Args[0]))
		fmt.Printf("Flags:\n")
		globalFlags.PrintDefaults()
		return
	}

	exitCode := 0
	var err error
	switch args[0] {
	case "deploy":
		preview := false
		deployFlags := deploymentFlagSet("deploy", opts)
		deployFlags.BoolVar(&preview, "preview", false, "run a what-if analysis before deploying")
		deployFlags.Parse(args[1:])

		if deployFlags.NArg() > 0 {
			deployFlags.Usage()
			return
		}
		exitCode, err = deploycli.Deploy(opts, deploycli.DeployOptions{Preview: preview})
	case "whatif":
		whatIfFlags := deploymentFlagSet("whatif", opts)
		whatIfFlags.Parse(args[1:])

		if whatIfFlags.NArg() > 0 {
			whatIfFlags.Usage()
			return
		}
		exitCode, err = deploycli.WhatIf(opts)
	case "compile":
		compileFlags := flag.NewFlagSet("compile", flag.ExitOnError)
		compileFlags.StringVar(&opts.TemplateFile, "t", opts.TemplateFile, "path to the root bicep template")
		compileFlags.Parse(args[1:])
		exitCode, err = deploycli.Compile(opts)
	case "subscriptions":
		exitCode, err = deploycli.Subscriptions(opts)
	default:
		log.Fatalf(`Unexpected command %q, expected "deploy", "whatif", "compile", or "subscriptions" command`, args[0])
	}

	if err != nil {
		log.Fatalf("ERROR: %s", stacktrace.RootCause(err))
	}
	os.Exit(exitCode)
}

func deploymentFlagSet(name string, opts *deploycli.CommandOptions) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ExitOnError)
	flags.StringVar(&opts.ResourceGroup, "g", "", "Azure resource group name (required)")
	flags.StringVar(&opts.Location, "l", opts.Location, "Azure region")
	flags.StringVar(&opts.ParameterFile, "p", opts.ParameterFile, "path to parameter file")
	flags.StringVar(&opts.SubscriptionID, "s", "", "Azure subscription ID (auto-resolved if not provided)")
	flags.StringVar(&opts.TemplateFile, "t", opts.TemplateFile, "path to the root bicep template")
	flags.StringVar(&opts.NamePrefix, "prefix", opts.NamePrefix, "deployment name prefix")
	flags.BoolVar(&opts.Interactive, "interactive", false, "prompt to pick a subscription when resolution is ambiguous")
	flags.DurationVar(&opts.PollInterval, "poll-interval", 10*time.Second, "pause between deployment status reads")
	flags.DurationVar(&opts.PollTimeout, "timeout", 30*time.Minute, "total wall-clock budget for the deployment to finish")
	return flags
}
