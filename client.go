package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"strings"

	"github.com/palantir/stacktrace"
)

// API versions for the Azure Resource Manager surfaces this driver talks to.
const (
	APIVersionResources   = "2021-04-01"
	APIVersionDeployments = "2021-04-01"
)

var (
	// DefaultManagementAPIBaseURL is the Azure Resource Manager endpoint.  It can be
	// overridden via the AZURE_MANAGEMENT_API_BASE_URL environment variable (useful
	// for sovereign clouds and for tests).
	DefaultManagementAPIBaseURL = managementBaseURLFromEnv()
)

func managementBaseURLFromEnv() string {
	if u := os.Getenv("AZURE_MANAGEMENT_API_BASE_URL"); u != "" {
		return strings.TrimSuffix(u, "/")
	}
	return "https://management.azure.com"
}

// Client is a thin Azure Resource Manager REST client.  Every request carries a
// bearer token from the configured TokenProvider.
type Client struct {
	ManagementAPIBaseURL string
	HTTPClient           func(*http.Request) (*http.Response, error)
	Tokens               TokenProvider
}

// ClientOpt is the interface to provide variadic options to NewClient.
type ClientOpt func(*Client)

// NewClient constructs a Client with defaults, then applies all provided options.
func NewClient(opts ...ClientOpt) *Client {
	c := &Client{
		ManagementAPIBaseURL: DefaultManagementAPIBaseURL,
		HTTPClient:           defaultHTTPClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithBaseURL is a ClientOpt to override the management API endpoint.
func WithBaseURL(baseURL string) ClientOpt {
	return func(c *Client) {
		if baseURL != "" {
			c.ManagementAPIBaseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient is a ClientOpt to override how HTTP requests are performed.
func WithHTTPClient(client func(*http.Request) (*http.Response, error)) ClientOpt {
	return func(c *Client) {
		if client != nil {
			c.HTTPClient = client
		}
	}
}

// WithTokenProvider is a ClientOpt to set the credential used to sign requests.
func WithTokenProvider(tokens TokenProvider) ClientOpt {
	return func(c *Client) {
		c.Tokens = tokens
	}
}

func defaultHTTPClient(req *http.Request) (*http.Response, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return resp, stacktrace.Propagate(err, "failed to %s %q", req.Method, req.URL.String())
	}
	return resp, nil
}

// apiResponse captures everything callers may need from a management API call,
// including headers (the what-if endpoint signals async results via Location).
type apiResponse struct {
	StatusCode int
	Header     http.Header
	Content    []byte
}

// commonDo issues a request and reads the body without judging the status code.
// The url may be a path relative to the management endpoint or an absolute URL
// (as returned in Location headers).
func commonDo(cli *Client, method string, u string, body io.Reader) (*apiResponse, error) {
	if cli.ManagementAPIBaseURL == "" {
		return nil, stacktrace.NewError("management API base URL not set")
	}
	if !strings.HasPrefix(u, "http") {
		u = fmt.Sprintf("%s%s", cli.ManagementAPIBaseURL, u)
	}

	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, stacktrace.Propagate(err, "unable to create new request for %s", u)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	if cli.Tokens != nil {
		token, err := cli.Tokens.Token(context.Background())
		if err != nil {
			return nil, stacktrace.Propagate(err, "failed to acquire token for %s %s", method, u)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := cli.HTTPClient(req)
	if err != nil {
		return nil, stacktrace.Propagate(err, "failed to %s %s", method, u)
	}
	defer resp.Body.Close()

	content, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, stacktrace.Propagate(err, "failed to read response body from %s", u)
	}

	return &apiResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Content:    content,
	}, nil
}

// commonRequest issues a request and requires a 200 or 201 response, returning
// the raw body.  Any other status is surfaced as ErrorUnexpectedResponse so
// callers can recover the remote error payload verbatim.
func commonRequest(cli *Client, method string, u string, body io.Reader) ([]byte, error) {
	resp, err := commonDo(cli, method, u, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 && resp.StatusCode != 201 {
		return nil, stacktrace.Propagate(ErrorUnexpectedResponse{
			StatusCode: resp.StatusCode,
			URL:        u,
			Content:    resp.Content,
		}, "unexpected response from %s", u)
	}
	return resp.Content, nil
}

func commonParsedGet(cli *Client, u string, result interface{}) error {
	content, err := commonRequest(cli, "GET", u, nil)
	if err != nil {
		return stacktrace.Propagate(err, "failed to get content for %s", u)
	}

	err = json.Unmarshal(content, result)
	if err != nil {
		return stacktrace.Propagate(err, "expected JSON from %s, failed to parse %q as JSON", u, string(content))
	}

	return nil
}
