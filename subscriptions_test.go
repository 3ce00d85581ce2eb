package sentinel

import (
	"net/http"
	"testing"

	"github.com/palantir/stacktrace"
	"github.com/stretchr/testify/require"
)

func subscriptionListHandler(body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestResolveSubscriptionExplicit(t *testing.T) {
	cli, requests, close := newTestClient(subscriptionListHandler(`{"value": []}`))
	defer close()

	id, err := ResolveSubscription(cli, "12345678-1234-1234-1234-123456789012")
	require.NoError(t, err)
	require.Equal(t, "12345678-1234-1234-1234-123456789012", id)
	require.Empty(t, requests, "an explicit id must not trigger any API call")
}

func TestResolveSubscriptionExplicitMalformed(t *testing.T) {
	cli, _, close := newTestClient(subscriptionListHandler(`{"value": []}`))
	defer close()

	_, err := ResolveSubscription(cli, "not-a-guid")
	require.Error(t, err)
	ctxErr, ok := stacktrace.RootCause(err).(*ContextError)
	require.True(t, ok, "expected ContextError, got %T", stacktrace.RootCause(err))
	require.Contains(t, ctxErr.Error(), "not-a-guid")
}

func TestResolveSubscriptionZeroAccessible(t *testing.T) {
	cli, _, close := newTestClient(subscriptionListHandler(`{"value": []}`))
	defer close()

	_, err := ResolveSubscription(cli, "")
	require.Error(t, err)
	_, ok := stacktrace.RootCause(err).(*ContextError)
	require.True(t, ok, "expected ContextError, got %T", stacktrace.RootCause(err))
}

func TestResolveSubscriptionExactlyOne(t *testing.T) {
	cli, requests, close := newTestClient(subscriptionListHandler(
		`{"value": [{"subscriptionId": "11111111-1111-1111-1111-111111111111", "displayName": "prod", "state": "Enabled"}]}`,
	))
	defer close()

	id, err := ResolveSubscription(cli, "")
	require.NoError(t, err)
	require.Equal(t, "11111111-1111-1111-1111-111111111111", id)
	require.Equal(t, map[string]int{"GET /subscriptions": 1}, requests)
}

func TestResolveSubscriptionAmbiguous(t *testing.T) {
	cli, _, close := newTestClient(subscriptionListHandler(
		`{"value": [
			{"subscriptionId": "11111111-1111-1111-1111-111111111111", "displayName": "prod"},
			{"subscriptionId": "22222222-2222-2222-2222-222222222222", "displayName": "dev"}
		]}`,
	))
	defer close()

	_, err := ResolveSubscription(cli, "")
	require.Error(t, err)
	ctxErr, ok := stacktrace.RootCause(err).(*ContextError)
	require.True(t, ok, "expected ContextError, got %T", stacktrace.RootCause(err))
	require.Len(t, ctxErr.Candidates, 2)
}

func TestGetSubscription(t *testing.T) {
	cli, requests, close := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"subscriptionId": "11111111-1111-1111-1111-111111111111", "displayName": "Security Prod", "state": "Enabled"}`))
	})
	defer close()

	sub, err := GetSubscription(cli, "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	require.Equal(t, "Security Prod", sub.DisplayName)
	require.Equal(t, map[string]int{"GET /subscriptions/11111111-1111-1111-1111-111111111111": 1}, requests)
}
