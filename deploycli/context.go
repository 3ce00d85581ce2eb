package deploycli

import (
	"context"
	"fmt"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mgutz/ansi"
	"github.com/palantir/stacktrace"
	"golang.org/x/crypto/ssh/terminal"

	sentinel "github.com/davidreavis95/Sentinel-ContentAutomation"
)

// authenticate acquires the credential up front so a misconfigured chain fails
// fast, before any resource call is attempted.
func authenticate(ctx context.Context, opts *CommandOptions, cli *sentinel.Client) error {
	fmt.Fprintf(opts.Stdout, "%sAuthenticating with Azure...%s\n", ansi.Yellow, ansi.Reset)
	if _, err := cli.Tokens.Token(ctx); err != nil {
		return err
	}
	fmt.Fprintf(opts.Stdout, "%s✓ Authenticated using %s%s\n", ansi.Green, cli.Tokens.Name(), ansi.Reset)
	return nil
}

// resolveContext determines the target subscription and builds the immutable
// deployment context.  Ambiguous auto-resolution fails unless the caller opted
// into an interactive prompt.
func resolveContext(opts *CommandOptions, cli *sentinel.Client) (*sentinel.DeploymentContext, error) {
	subID, err := sentinel.ResolveSubscription(cli, opts.SubscriptionID)
	if err != nil {
		ctxErr, ok := stacktrace.RootCause(err).(*sentinel.ContextError)
		if !ok || !opts.Interactive || len(ctxErr.Candidates) == 0 {
			return nil, err
		}
		subID, err = pickSubscription(opts, cli)
		if err != nil {
			return nil, err
		}
	}

	// Display name lookup is best-effort; a denied read does not block the run.
	if sub, err := sentinel.GetSubscription(cli, subID); err == nil {
		fmt.Fprintf(opts.Stdout, "%s✓ Subscription: %s (%s)%s\n", ansi.Green, sub.DisplayName, subID, ansi.Reset)
	} else {
		opts.Logger.Debugf("could not read subscription details: %v", err)
		fmt.Fprintf(opts.Stdout, "%s✓ Subscription: %s%s\n", ansi.Green, subID, ansi.Reset)
	}

	return &sentinel.DeploymentContext{
		SubscriptionID: subID,
		ResourceGroup:  opts.ResourceGroup,
		Location:       opts.Location,
	}, nil
}

func pickSubscription(opts *CommandOptions, cli *sentinel.Client) (string, error) {
	subs, err := sentinel.ListSubscriptions(cli)
	if err != nil {
		return "", err
	}

	options := make([]string, len(subs))
	byOption := make(map[string]string, len(subs))
	for i, sub := range subs {
		option := fmt.Sprintf("%s (%s)", sub.DisplayName, sub.ID)
		options[i] = option
		byOption[option] = sub.ID
	}

	_, h, err := terminal.GetSize(syscall.Stdout)
	if err != nil {
		return "", err
	}
	pageSize := len(options)
	if pageSize+2 > h {
		pageSize = h - 2
	}

	var selected string
	err = survey.AskOne(
		&survey.Select{
			Message:  "Select target subscription",
			Options:  options,
			PageSize: pageSize,
		},
		&selected,
	)
	if err != nil {
		return "", err
	}
	return byOption[selected], nil
}
