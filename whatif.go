package sentinel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/palantir/stacktrace"
)

// ChangeType classifies one predicted resource change in a what-if result.
type ChangeType string

const (
	ChangeTypeCreate      ChangeType = "Create"
	ChangeTypeDelete      ChangeType = "Delete"
	ChangeTypeDeploy      ChangeType = "Deploy"
	ChangeTypeIgnore      ChangeType = "Ignore"
	ChangeTypeModify      ChangeType = "Modify"
	ChangeTypeNoChange    ChangeType = "NoChange"
	ChangeTypeUnsupported ChangeType = "Unsupported"
)

// PropertyChange is a single property delta within a predicted change.
type PropertyChange struct {
	Path       string           `json:"path"`
	ChangeType string           `json:"propertyChangeType"`
	Before     interface{}      `json:"before"`
	After      interface{}      `json:"after"`
	Children   []PropertyChange `json:"children"`
}

// ResourceChange is one predicted change for a resource.
type ResourceChange struct {
	ResourceID string           `json:"resourceId"`
	ChangeType ChangeType       `json:"changeType"`
	Delta      []PropertyChange `json:"delta"`
}

// WhatIfResult is the predicted change set from a dry-run analysis.  Producing
// it never mutates remote state.
type WhatIfResult struct {
	Status  string
	Changes []ResourceChange
}

type whatIfDocument struct {
	Status     string `json:"status"`
	Properties struct {
		Changes []ResourceChange `json:"changes"`
	} `json:"properties"`
}

func (d *whatIfDocument) result() *WhatIfResult {
	return &WhatIfResult{
		Status:  d.Status,
		Changes: d.Properties.Changes,
	}
}

// WhatIf submits the compiled template for a side-effect-free analysis and
// returns the predicted change set.  The endpoint may answer inline (200) or
// asynchronously (202 with a Location header to poll).  All failures are
// wrapped in PreviewError; callers treat them as diagnostic only.
func WhatIf(cli *Client, dctx *DeploymentContext, template CompiledTemplate, params Parameters, opts PollOptions) (*WhatIfResult, error) {
	opts = opts.withDefaults()

	encoded, err := deploymentBody(template, params)
	if err != nil {
		return nil, stacktrace.Propagate(&PreviewError{Cause: err}, "what-if request could not be built")
	}

	name := NewDeploymentName("validation", opts.Now())
	u := fmt.Sprintf("/subscriptions/%s/resourcegroups/%s/providers/Microsoft.Resources/deployments/%s/whatIf?api-version=%s",
		dctx.SubscriptionID, dctx.ResourceGroup, name, APIVersionDeployments)

	resp, err := commonDo(cli, "POST", u, bytes.NewReader(encoded))
	if err != nil {
		return nil, stacktrace.Propagate(&PreviewError{Cause: err}, "what-if call failed")
	}

	var content []byte
	switch resp.StatusCode {
	case 200:
		content = resp.Content
	case 202:
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, stacktrace.Propagate(&PreviewError{
				Cause: stacktrace.NewError("what-if accepted but no Location header returned"),
			}, "what-if call failed")
		}
		content, err = pollAsyncOperation(cli, location, opts)
		if err != nil {
			return nil, stacktrace.Propagate(&PreviewError{Cause: err}, "what-if result polling failed")
		}
	default:
		return nil, stacktrace.Propagate(&PreviewError{
			Cause: ErrorUnexpectedResponse{StatusCode: resp.StatusCode, URL: u, Content: resp.Content},
		}, "what-if call rejected")
	}

	doc := whatIfDocument{}
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, stacktrace.Propagate(&PreviewError{
			Cause: ErrorInvalidContent{Content: content, ParseError: err},
		}, "failed to parse what-if result")
	}
	return doc.result(), nil
}

// pollAsyncOperation follows a Location header until the operation completes.
// The what-if analysis is much quicker than a deployment, so the budget is
// capped at five minutes regardless of the caller's deployment timeout.
func pollAsyncOperation(cli *Client, location string, opts PollOptions) ([]byte, error) {
	timeout := opts.Timeout
	if timeout > 5*time.Minute {
		timeout = 5 * time.Minute
	}
	deadline := opts.Now().Add(timeout)

	for {
		resp, err := commonDo(cli, "GET", location, nil)
		if err != nil {
			return nil, stacktrace.Propagate(err, "failed to poll async operation at %s", location)
		}
		switch resp.StatusCode {
		case 200:
			return resp.Content, nil
		case 202:
			// still running
		default:
			return nil, stacktrace.Propagate(ErrorUnexpectedResponse{
				StatusCode: resp.StatusCode,
				URL:        location,
				Content:    resp.Content,
			}, "async operation at %s failed", location)
		}
		if opts.Now().Add(opts.Interval).After(deadline) {
			return nil, stacktrace.NewError("async operation at %s did not complete within %s", location, timeout)
		}
		opts.Sleep(opts.Interval)
	}
}
