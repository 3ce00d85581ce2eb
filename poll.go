package sentinel

import (
	"time"

	"github.com/palantir/stacktrace"
)

// PollOptions controls the cadence and budget of AwaitCompletion.  Now and
// Sleep are injectable so tests can run against a compressed clock.
type PollOptions struct {
	// Interval is the pause between status reads.  Coarse by design; the
	// remote operation takes minutes.
	Interval time.Duration
	// Timeout bounds the total wall-clock wait.
	Timeout time.Duration
	// MaxTransientRetries bounds consecutive poll failures caused by
	// network/service errors before they are escalated.
	MaxTransientRetries int
	Now                 func() time.Time
	Sleep               func(time.Duration)
	Logger              Logger
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = 10 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Minute
	}
	if o.MaxTransientRetries <= 0 {
		o.MaxTransientRetries = 5
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	if o.Logger == nil {
		o.Logger = NewDefaultLogger(false)
	}
	return o
}

// AwaitCompletion polls a deployment operation until it reaches a terminal
// state.  Transient poll failures are retried with a doubling backoff up to
// MaxTransientRetries before being escalated; a terminal business failure
// (Failed/Canceled) is never retried.  When the budget elapses the remote
// operation is left running and a TimeoutError naming it is returned.
func AwaitCompletion(cli *Client, dctx *DeploymentContext, name string, opts PollOptions) (*DeploymentOperation, error) {
	opts = opts.withDefaults()

	deadline := opts.Now().Add(opts.Timeout)
	var lastStatus OperationStatus
	transientFailures := 0

	for {
		op, err := GetDeployment(cli, dctx, name)
		if err != nil {
			// Network or service hiccup while polling; the operation itself
			// may be fine, so retry within a bounded budget.
			transientFailures++
			if transientFailures > opts.MaxTransientRetries {
				return nil, stacktrace.Propagate(err, "giving up polling deployment %q after %d consecutive failures", name, transientFailures-1)
			}
			backoff := opts.Interval << uint(transientFailures-1)
			opts.Logger.Noticef("transient error polling deployment %q (attempt %d/%d), retrying in %s: %v",
				name, transientFailures, opts.MaxTransientRetries, backoff, err)
			if opts.Now().Add(backoff).After(deadline) {
				return nil, stacktrace.Propagate(&TimeoutError{OperationName: name, Timeout: opts.Timeout}, "deployment %q timed out", name)
			}
			opts.Sleep(backoff)
			continue
		}
		transientFailures = 0

		if op.Status != lastStatus {
			opts.Logger.Noticef("deployment %q status: %s", name, op.Status)
			lastStatus = op.Status
		}

		switch op.Status {
		case StatusSucceeded:
			return op, nil
		case StatusFailed, StatusCanceled:
			return nil, stacktrace.Propagate(&DeploymentFailedError{
				OperationName: name,
				Status:        op.Status,
				Detail:        op.Error,
			}, "deployment %q failed", name)
		}

		if opts.Now().Add(opts.Interval).After(deadline) {
			return nil, stacktrace.Propagate(&TimeoutError{OperationName: name, Timeout: opts.Timeout}, "deployment %q timed out", name)
		}
		opts.Sleep(opts.Interval)
	}
}
