package sentinel

import (
	"net/http"
	"testing"
	"time"

	"github.com/palantir/stacktrace"
	"github.com/stretchr/testify/require"
)

func quickPoll() PollOptions {
	return PollOptions{
		Interval: time.Millisecond,
		Timeout:  time.Second,
		Logger:   NewDefaultLogger(false),
	}
}

func TestAwaitCompletionSucceeded(t *testing.T) {
	polls := 0
	cli, _, close := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		polls++
		w.Header().Set("Content-Type", "application/json")
		if polls < 3 {
			w.Write([]byte(`{"properties": {"provisioningState": "Running"}}`))
			return
		}
		w.Write([]byte(`{
			"properties": {
				"provisioningState": "Succeeded",
				"outputs": {"workspaceName": {"type": "String", "value": "sentinel-ws"}}
			}
		}`))
	})
	defer close()

	dctx := &DeploymentContext{SubscriptionID: "sub", ResourceGroup: "rg"}

	op, err := AwaitCompletion(cli, dctx, "sentinel-deployment-1", quickPoll())
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, op.Status)
	require.Equal(t, "sentinel-ws", op.Outputs["workspaceName"].Value)
	require.Equal(t, 3, polls)
}

func TestAwaitCompletionFailedCarriesRemoteDetail(t *testing.T) {
	cli, requests, close := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"properties": {
				"provisioningState": "Failed",
				"error": {"code": "QuotaExceeded", "message": "workspace quota exhausted for region"}
			}
		}`))
	})
	defer close()

	dctx := &DeploymentContext{SubscriptionID: "sub", ResourceGroup: "rg"}

	_, err := AwaitCompletion(cli, dctx, "sentinel-deployment-1", quickPoll())
	require.Error(t, err)

	failedErr, ok := stacktrace.RootCause(err).(*DeploymentFailedError)
	require.True(t, ok, "expected DeploymentFailedError, got %T", stacktrace.RootCause(err))
	require.Equal(t, StatusFailed, failedErr.Status)
	require.Contains(t, string(failedErr.Detail), "QuotaExceeded")
	require.Contains(t, failedErr.Error(), "sentinel-deployment-1")

	// a terminal business failure is never retried
	require.Equal(t, map[string]int{
		"GET /subscriptions/sub/resourcegroups/rg/providers/Microsoft.Resources/deployments/sentinel-deployment-1": 1,
	}, requests)
}

func TestAwaitCompletionCanceled(t *testing.T) {
	cli, _, close := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"properties": {"provisioningState": "Canceled"}}`))
	})
	defer close()

	dctx := &DeploymentContext{SubscriptionID: "sub", ResourceGroup: "rg"}

	_, err := AwaitCompletion(cli, dctx, "sentinel-deployment-1", quickPoll())
	require.Error(t, err)
	failedErr, ok := stacktrace.RootCause(err).(*DeploymentFailedError)
	require.True(t, ok, "expected DeploymentFailedError, got %T", stacktrace.RootCause(err))
	require.Equal(t, StatusCanceled, failedErr.Status)
}

func TestAwaitCompletionTimeout(t *testing.T) {
	cli, _, close := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"properties": {"provisioningState": "Running"}}`))
	})
	defer close()

	dctx := &DeploymentContext{SubscriptionID: "sub", ResourceGroup: "rg"}
	opts := PollOptions{
		Interval: 5 * time.Millisecond,
		Timeout:  50 * time.Millisecond,
		Logger:   NewDefaultLogger(false),
	}

	start := time.Now()
	_, err := AwaitCompletion(cli, dctx, "sentinel-deployment-1", opts)
	elapsed := time.Since(start)

	require.Error(t, err)
	timeoutErr, ok := stacktrace.RootCause(err).(*TimeoutError)
	require.True(t, ok, "expected TimeoutError, got %T", stacktrace.RootCause(err))
	// the operation name must be reported so it can be inspected out-of-band
	require.Equal(t, "sentinel-deployment-1", timeoutErr.OperationName)
	require.Contains(t, timeoutErr.Error(), "sentinel-deployment-1")
	require.Less(t, elapsed, 2*time.Second, "the poll loop must not hang past its budget")
}

func TestAwaitCompletionRetriesTransientErrors(t *testing.T) {
	polls := 0
	cli, _, close := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"properties": {"provisioningState": "Succeeded", "outputs": {}}}`))
	})
	defer close()

	dctx := &DeploymentContext{SubscriptionID: "sub", ResourceGroup: "rg"}

	op, err := AwaitCompletion(cli, dctx, "sentinel-deployment-1", quickPoll())
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, op.Status)
	require.Equal(t, 3, polls)
}

func TestAwaitCompletionTransientBudgetExhausted(t *testing.T) {
	polls := 0
	cli, _, close := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		polls++
		w.WriteHeader(http.StatusBadGateway)
	})
	defer close()

	dctx := &DeploymentContext{SubscriptionID: "sub", ResourceGroup: "rg"}
	opts := quickPoll()
	opts.MaxTransientRetries = 2

	_, err := AwaitCompletion(cli, dctx, "sentinel-deployment-1", opts)
	require.Error(t, err)
	_, isTimeout := stacktrace.RootCause(err).(*TimeoutError)
	require.False(t, isTimeout, "an exhausted retry budget is not a timeout")
	require.Equal(t, 3, polls)
}
