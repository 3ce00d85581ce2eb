package sentinel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/palantir/stacktrace"
)

// OperationStatus is the provisioning state of a deployment operation as
// reported by the remote service.  The driver never transitions state itself.
type OperationStatus string

const (
	StatusAccepted  OperationStatus = "Accepted"
	StatusRunning   OperationStatus = "Running"
	StatusSucceeded OperationStatus = "Succeeded"
	StatusFailed    OperationStatus = "Failed"
	StatusCanceled  OperationStatus = "Canceled"
)

// Terminal reports whether the status is final.
func (s OperationStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// OutputValue is a single resolved deployment output.
type OutputValue struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// DeploymentOperation is the tracked unit of work for one submission.  It is
// mutated only by the remote service and observed via polling.
type DeploymentOperation struct {
	Name    string
	Status  OperationStatus
	Outputs map[string]OutputValue
	// Error holds the remote error payload verbatim when the operation failed.
	Error json.RawMessage
}

// deploymentDocument is the wire shape of a Microsoft.Resources/deployments
// resource.
type deploymentDocument struct {
	Name       string `json:"name"`
	Properties struct {
		ProvisioningState string                 `json:"provisioningState"`
		Outputs           map[string]OutputValue `json:"outputs"`
		Error             json.RawMessage        `json:"error"`
	} `json:"properties"`
}

func (d *deploymentDocument) operation(name string) *DeploymentOperation {
	if d.Name != "" {
		name = d.Name
	}
	return &DeploymentOperation{
		Name:    name,
		Status:  OperationStatus(d.Properties.ProvisioningState),
		Outputs: d.Properties.Outputs,
		Error:   d.Properties.Error,
	}
}

// nameCounter disambiguates deployment names generated within the same second.
var nameCounter uint64

// NewDeploymentName generates an operation name unique within the target
// resource group for this run: a human-readable prefix, a second-resolution
// timestamp, and a process-wide counter.
func NewDeploymentName(prefix string, now time.Time) string {
	n := atomic.AddUint64(&nameCounter, 1)
	return fmt.Sprintf("%s-%s-%d", prefix, now.UTC().Format("20060102-150405"), n)
}

func deploymentURL(dctx *DeploymentContext, name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourcegroups/%s/providers/Microsoft.Resources/deployments/%s?api-version=%s",
		dctx.SubscriptionID, dctx.ResourceGroup, name, APIVersionDeployments)
}

func deploymentBody(template CompiledTemplate, params Parameters) ([]byte, error) {
	body := map[string]interface{}{
		"properties": map[string]interface{}{
			"template":   template,
			"parameters": params,
			"mode":       "Incremental",
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, stacktrace.Propagate(err, "failed to encode deployment body")
	}
	return encoded, nil
}

// SubmitDeployment issues the create/update call for a deployment.  The call
// returns the initial operation state and does not block for completion.  On
// rejection the remote error payload is carried verbatim in SubmitError.
func SubmitDeployment(cli *Client, dctx *DeploymentContext, name string, template CompiledTemplate, params Parameters) (*DeploymentOperation, error) {
	encoded, err := deploymentBody(template, params)
	if err != nil {
		return nil, err
	}

	resp, err := commonDo(cli, "PUT", deploymentURL(dctx, name), bytes.NewReader(encoded))
	if err != nil {
		return nil, stacktrace.Propagate(&SubmitError{OperationName: name, Cause: err}, "failed to submit deployment %q", name)
	}
	if resp.StatusCode != 200 && resp.StatusCode != 201 {
		return nil, stacktrace.Propagate(&SubmitError{
			OperationName: name,
			Detail:        resp.Content,
			Cause:         ErrorUnexpectedResponse{StatusCode: resp.StatusCode, URL: deploymentURL(dctx, name), Content: resp.Content},
		}, "deployment %q rejected", name)
	}

	doc := deploymentDocument{}
	if err := json.Unmarshal(resp.Content, &doc); err != nil {
		return nil, stacktrace.Propagate(&SubmitError{
			OperationName: name,
			Detail:        resp.Content,
			Cause:         ErrorInvalidContent{Content: resp.Content, ParseError: err},
		}, "failed to parse deployment response for %q", name)
	}
	op := doc.operation(name)
	if op.Status == "" {
		op.Status = StatusAccepted
	}
	return op, nil
}

// GetDeployment reads the current state of a deployment operation.
func GetDeployment(cli *Client, dctx *DeploymentContext, name string) (*DeploymentOperation, error) {
	doc := deploymentDocument{}
	err := commonParsedGet(cli, deploymentURL(dctx, name), &doc)
	if err != nil {
		return nil, stacktrace.Propagate(err, "failed to read deployment %q", name)
	}
	return doc.operation(name), nil
}
