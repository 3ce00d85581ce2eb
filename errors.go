package sentinel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrorUnexpectedResponse is returned when the management API answers with a
// status code the caller did not expect.  Content holds the raw response body
// so the remote error payload is never lost.
type ErrorUnexpectedResponse struct {
	StatusCode int
	URL        string
	Content    []byte
}

func (e ErrorUnexpectedResponse) Error() string {
	return fmt.Sprintf("Unexpected response from %s, expected 200 or 201 but got %d", e.URL, e.StatusCode)
}

// Parse decodes the raw response body into data.
func (e ErrorUnexpectedResponse) Parse(data interface{}) error {
	return json.Unmarshal(e.Content, data)
}

// ErrorInvalidContent is returned when a response body could not be parsed.
type ErrorInvalidContent struct {
	Content    []byte
	ParseError error
}

func (e ErrorInvalidContent) Error() string {
	return e.ParseError.Error()
}

// CredentialAttempt records one credential strategy that was tried and why it
// did not produce a token.
type CredentialAttempt struct {
	Strategy string
	Err      error
}

// AuthError is returned when no credential strategy yields a usable token.
// Attempts lists every strategy that was tried, in order.
type AuthError struct {
	Attempts []CredentialAttempt
}

func (e *AuthError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "authentication failed, no credential strategy succeeded (tried %d)", len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %v", a.Strategy, a.Err)
	}
	return b.String()
}

// ContextError is returned when the target subscription cannot be resolved,
// either because the supplied id is malformed or because auto-resolution is
// ambiguous (zero or more than one accessible subscription).
type ContextError struct {
	Reason     string
	Candidates []string
}

func (e *ContextError) Error() string {
	if len(e.Candidates) > 0 {
		return fmt.Sprintf("cannot resolve target subscription: %s (candidates: %s)", e.Reason, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("cannot resolve target subscription: %s", e.Reason)
}

// ContainerError is returned when the target resource group cannot be ensured.
type ContainerError struct {
	ResourceGroup string
	Reason        string
	Cause         error
}

func (e *ContainerError) Error() string {
	return fmt.Sprintf("cannot ensure resource group %q: %s", e.ResourceGroup, e.Reason)
}

func (e *ContainerError) Unwrap() error {
	return e.Cause
}

// CompileError is returned when bicep compilation fails.  Diagnostics holds the
// compiler's raw stderr output.
type CompileError struct {
	File        string
	Diagnostics string
	Cause       error
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("failed to compile template %q", e.File)
	if e.Diagnostics != "" {
		msg += ": " + strings.TrimSpace(e.Diagnostics)
	} else if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CompileError) Unwrap() error {
	return e.Cause
}

// PreviewError is returned when a what-if analysis fails.  It is diagnostic
// only and never blocks a real deployment.
type PreviewError struct {
	Cause error
}

func (e *PreviewError) Error() string {
	return fmt.Sprintf("what-if analysis failed: %v", e.Cause)
}

func (e *PreviewError) Unwrap() error {
	return e.Cause
}

// SubmitError is returned when the management API rejects a deployment
// submission.  Detail holds the remote error payload verbatim when available.
type SubmitError struct {
	OperationName string
	Detail        []byte
	Cause         error
}

func (e *SubmitError) Error() string {
	msg := fmt.Sprintf("deployment %q was rejected", e.OperationName)
	if len(e.Detail) > 0 {
		msg += ": " + string(e.Detail)
	} else if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SubmitError) Unwrap() error {
	return e.Cause
}

// TimeoutError is returned when a deployment does not reach a terminal state
// within the polling budget.  The remote operation is left running; the
// operation name is included so it can be inspected out-of-band.
type TimeoutError struct {
	OperationName string
	Timeout       time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("deployment %q did not reach a terminal state within %s, the remote operation is still running", e.OperationName, e.Timeout)
}

// DeploymentFailedError is returned when the remote service reports a terminal
// Failed or Canceled state.  Detail holds the remote error payload verbatim.
type DeploymentFailedError struct {
	OperationName string
	Status        OperationStatus
	Detail        []byte
}

func (e *DeploymentFailedError) Error() string {
	msg := fmt.Sprintf("deployment %q ended with status %s", e.OperationName, e.Status)
	if len(e.Detail) > 0 {
		msg += ": " + string(e.Detail)
	}
	return msg
}
