package sentinel

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/palantir/stacktrace"
)

// ContainerState reports what EnsureResourceGroup did.
type ContainerState string

const (
	// ContainerAlreadyExists means the resource group was already present.
	ContainerAlreadyExists ContainerState = "AlreadyExists"
	// ContainerCreated means the resource group was created by this run.
	ContainerCreated ContainerState = "Created"
)

func resourceGroupURL(dctx *DeploymentContext) string {
	return fmt.Sprintf("/subscriptions/%s/resourcegroups/%s?api-version=%s",
		dctx.SubscriptionID, dctx.ResourceGroup, APIVersionResources)
}

// EnsureResourceGroup makes sure the target resource group exists, creating it
// in the context's location when absent.  The create call is an idempotent
// upsert upstream, so a concurrent create racing this one is benign; genuine
// authorization or quota failures are surfaced as ContainerError.
func EnsureResourceGroup(cli *Client, dctx *DeploymentContext) (ContainerState, error) {
	u := resourceGroupURL(dctx)

	resp, err := commonDo(cli, "GET", u, nil)
	if err != nil {
		return "", stacktrace.Propagate(&ContainerError{
			ResourceGroup: dctx.ResourceGroup,
			Reason:        "existence check failed",
			Cause:         err,
		}, "failed to check resource group %q", dctx.ResourceGroup)
	}

	switch {
	case resp.StatusCode == 200:
		return ContainerAlreadyExists, nil
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return "", stacktrace.Propagate(&ContainerError{
			ResourceGroup: dctx.ResourceGroup,
			Reason:        fmt.Sprintf("not authorized to read resource group (%d): %s", resp.StatusCode, string(resp.Content)),
		}, "failed to check resource group %q", dctx.ResourceGroup)
	case resp.StatusCode != 404:
		return "", stacktrace.Propagate(&ContainerError{
			ResourceGroup: dctx.ResourceGroup,
			Reason:        fmt.Sprintf("unexpected response %d: %s", resp.StatusCode, string(resp.Content)),
		}, "failed to check resource group %q", dctx.ResourceGroup)
	}

	body, err := json.Marshal(map[string]string{"location": dctx.Location})
	if err != nil {
		return "", stacktrace.Propagate(err, "failed to encode resource group body")
	}

	createResp, err := commonDo(cli, "PUT", u, bytes.NewReader(body))
	if err != nil {
		return "", stacktrace.Propagate(&ContainerError{
			ResourceGroup: dctx.ResourceGroup,
			Reason:        "create call failed",
			Cause:         err,
		}, "failed to create resource group %q", dctx.ResourceGroup)
	}
	if createResp.StatusCode != 200 && createResp.StatusCode != 201 {
		reason := fmt.Sprintf("create rejected with %d: %s", createResp.StatusCode, string(createResp.Content))
		if createResp.StatusCode == 401 || createResp.StatusCode == 403 {
			reason = fmt.Sprintf("not authorized to create resource group (%d): %s", createResp.StatusCode, string(createResp.Content))
		}
		return "", stacktrace.Propagate(&ContainerError{
			ResourceGroup: dctx.ResourceGroup,
			Reason:        reason,
		}, "failed to create resource group %q", dctx.ResourceGroup)
	}

	return ContainerCreated, nil
}
