package deploycli

import (
	"context"
	"fmt"
	"sort"

	sentinel "github.com/davidreavis95/Sentinel-ContentAutomation"
)

// Subscriptions is a command line interface to list the subscriptions the
// configured credential can reach, to help pick an explicit target.
func Subscriptions(opts *CommandOptions) (int, error) {
	ctx := context.Background()
	cli := newClient(opts)

	if err := authenticate(ctx, opts, cli); err != nil {
		return 1, err
	}

	subs, err := sentinel.ListSubscriptions(cli)
	if err != nil {
		return 1, err
	}
	if len(subs) == 0 {
		fmt.Fprintf(opts.Stdout, "No accessible subscriptions\n")
		return 0, nil
	}

	sort.Slice(subs, func(i, j int) bool { return subs[i].DisplayName < subs[j].DisplayName })
	for _, sub := range subs {
		fmt.Fprintf(opts.Stdout, "%s  %s (%s)\n", sub.ID, sub.DisplayName, sub.State)
	}
	return 0, nil
}
