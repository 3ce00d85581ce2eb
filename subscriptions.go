package sentinel

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/palantir/stacktrace"
)

// Subscription describes one subscription accessible to the caller.
type Subscription struct {
	ID          string `json:"subscriptionId"`
	DisplayName string `json:"displayName"`
	State       string `json:"state"`
}

// DeploymentContext is the resolved target for a run.  Immutable once built.
type DeploymentContext struct {
	SubscriptionID string
	ResourceGroup  string
	Location       string
}

// ListSubscriptions returns the subscriptions the credential can see.
func ListSubscriptions(cli *Client) ([]Subscription, error) {
	data := struct {
		Value []Subscription `json:"value"`
	}{}
	err := commonParsedGet(cli, fmt.Sprintf("/subscriptions?api-version=%s", APIVersionResources), &data)
	if err != nil {
		return nil, stacktrace.Propagate(err, "failed to list subscriptions")
	}
	return data.Value, nil
}

// GetSubscription fetches details (display name, state) for a subscription.
func GetSubscription(cli *Client, id string) (*Subscription, error) {
	sub := Subscription{}
	err := commonParsedGet(cli, fmt.Sprintf("/subscriptions/%s?api-version=%s", id, APIVersionResources), &sub)
	if err != nil {
		return nil, stacktrace.Propagate(err, "failed to get subscription %s", id)
	}
	return &sub, nil
}

// ResolveSubscription determines the target subscription id.  An explicit id
// is validated and used as-is; otherwise the caller must have access to
// exactly one subscription.  Ambiguity is an error, never a guess.
func ResolveSubscription(cli *Client, explicitID string) (string, error) {
	if explicitID != "" {
		if _, err := uuid.Parse(explicitID); err != nil {
			return "", stacktrace.Propagate(&ContextError{
				Reason: fmt.Sprintf("subscription id %q is not a well-formed GUID", explicitID),
			}, "invalid subscription id")
		}
		return explicitID, nil
	}

	subs, err := ListSubscriptions(cli)
	if err != nil {
		return "", err
	}

	switch len(subs) {
	case 0:
		return "", stacktrace.Propagate(&ContextError{
			Reason: "no accessible subscriptions found for this credential",
		}, "cannot auto-resolve subscription")
	case 1:
		return subs[0].ID, nil
	default:
		candidates := make([]string, len(subs))
		for i, s := range subs {
			candidates[i] = s.ID
		}
		return "", stacktrace.Propagate(&ContextError{
			Reason:     fmt.Sprintf("%d accessible subscriptions found, specify one explicitly", len(subs)),
			Candidates: candidates,
		}, "cannot auto-resolve subscription")
	}
}
