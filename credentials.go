package sentinel

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/palantir/stacktrace"
)

var osGetenv = os.Getenv

// managementScope is the OAuth scope for Azure Resource Manager tokens.
const managementScope = "https://management.azure.com/.default"

// DefaultAuthorityBaseURL is the Azure AD endpoint used for token requests.
var DefaultAuthorityBaseURL = "https://login.microsoftonline.com"

// TokenProvider supplies bearer tokens for management API calls.  A provider
// represents one authentication strategy.
type TokenProvider interface {
	// Name identifies the strategy in logs and AuthError messages.
	Name() string
	// Token returns a usable bearer token or an error describing why this
	// strategy cannot produce one.
	Token(ctx context.Context) (string, error)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func requestToken(ctx context.Context, httpClient func(*http.Request) (*http.Response, error), tokenURL string, form url.Values) (string, error) {
	if httpClient == nil {
		httpClient = defaultHTTPClient
	}
	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", stacktrace.Propagate(err, "unable to create token request for %s", tokenURL)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient(req)
	if err != nil {
		return "", stacktrace.Propagate(err, "token request to %s failed", tokenURL)
	}
	defer resp.Body.Close()

	content, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", stacktrace.Propagate(err, "failed to read token response from %s", tokenURL)
	}
	if resp.StatusCode != 200 {
		return "", stacktrace.NewError("token request to %s returned %d: %s", tokenURL, resp.StatusCode, string(content))
	}

	var tr tokenResponse
	if err := json.Unmarshal(content, &tr); err != nil {
		return "", stacktrace.Propagate(ErrorInvalidContent{Content: content, ParseError: err}, "failed to parse token response from %s", tokenURL)
	}
	if tr.AccessToken == "" {
		return "", stacktrace.NewError("token response from %s contained no access_token", tokenURL)
	}
	return tr.AccessToken, nil
}

// ClientSecretCredential authenticates a service principal with a client secret.
type ClientSecretCredential struct {
	TenantID         string
	ClientID         string
	ClientSecret     string
	AuthorityBaseURL string
	HTTPClient       func(*http.Request) (*http.Response, error)
}

// Name implements TokenProvider.
func (c *ClientSecretCredential) Name() string { return "client-secret principal" }

// Token implements TokenProvider.
func (c *ClientSecretCredential) Token(ctx context.Context) (string, error) {
	if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" {
		return "", stacktrace.NewError("tenant id, client id and client secret are all required")
	}
	authority := c.AuthorityBaseURL
	if authority == "" {
		authority = DefaultAuthorityBaseURL
	}
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
		"scope":         {managementScope},
	}
	return requestToken(ctx, c.HTTPClient, authority+"/"+c.TenantID+"/oauth2/v2.0/token", form)
}

// WorkloadIdentityCredential authenticates with a federated token projected
// into the process environment (workload identity / managed identity setups).
type WorkloadIdentityCredential struct {
	TenantID           string
	ClientID           string
	FederatedTokenFile string
	AuthorityBaseURL   string
	HTTPClient         func(*http.Request) (*http.Response, error)
}

// Name implements TokenProvider.
func (c *WorkloadIdentityCredential) Name() string { return "workload identity" }

// Token implements TokenProvider.
func (c *WorkloadIdentityCredential) Token(ctx context.Context) (string, error) {
	if c.TenantID == "" || c.ClientID == "" || c.FederatedTokenFile == "" {
		return "", stacktrace.NewError("tenant id, client id and federated token file are all required")
	}
	assertion, err := ioutil.ReadFile(c.FederatedTokenFile)
	if err != nil {
		return "", stacktrace.Propagate(err, "failed to read federated token file %s", c.FederatedTokenFile)
	}
	authority := c.AuthorityBaseURL
	if authority == "" {
		authority = DefaultAuthorityBaseURL
	}
	form := url.Values{
		"grant_type":            {"client_credentials"},
		"client_id":             {c.ClientID},
		"client_assertion_type": {"urn:ietf:params:oauth:client-assertion-type:jwt-bearer"},
		"client_assertion":      {strings.TrimSpace(string(assertion))},
		"scope":                 {managementScope},
	}
	return requestToken(ctx, c.HTTPClient, authority+"/"+c.TenantID+"/oauth2/v2.0/token", form)
}

// CLICredential obtains a token from the local az CLI session.
type CLICredential struct {
	Exec Executor
}

// Name implements TokenProvider.
func (c *CLICredential) Name() string { return "azure CLI session" }

// Token implements TokenProvider.
func (c *CLICredential) Token(ctx context.Context) (string, error) {
	runner := c.Exec
	if runner == nil {
		runner = OSExecutor{}
	}
	stdout, stderr, err := runner.Execute(ctx, "az", "account", "get-access-token", "--resource", "https://management.azure.com", "--output", "json")
	if err != nil {
		return "", stacktrace.Propagate(err, "az account get-access-token failed: %s", strings.TrimSpace(string(stderr)))
	}
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(stdout, &out); err != nil {
		return "", stacktrace.Propagate(ErrorInvalidContent{Content: stdout, ParseError: err}, "failed to parse az CLI token output")
	}
	if out.AccessToken == "" {
		return "", stacktrace.NewError("az CLI returned no access token, run 'az login' first")
	}
	return out.AccessToken, nil
}

// EnvironmentCredential builds a credential from the conventional AZURE_*
// environment variables, trying a client secret first and then a federated
// token file.
type EnvironmentCredential struct {
	AuthorityBaseURL string
	HTTPClient       func(*http.Request) (*http.Response, error)
	// Getenv is swapped in tests; defaults to os.Getenv.
	Getenv func(string) string
}

// Name implements TokenProvider.
func (c *EnvironmentCredential) Name() string { return "environment variables" }

// Token implements TokenProvider.
func (c *EnvironmentCredential) Token(ctx context.Context) (string, error) {
	getenv := c.Getenv
	if getenv == nil {
		getenv = osGetenv
	}
	tenant := getenv("AZURE_TENANT_ID")
	client := getenv("AZURE_CLIENT_ID")
	if secret := getenv("AZURE_CLIENT_SECRET"); secret != "" {
		cred := &ClientSecretCredential{
			TenantID:         tenant,
			ClientID:         client,
			ClientSecret:     secret,
			AuthorityBaseURL: c.AuthorityBaseURL,
			HTTPClient:       c.HTTPClient,
		}
		return cred.Token(ctx)
	}
	if tokenFile := getenv("AZURE_FEDERATED_TOKEN_FILE"); tokenFile != "" {
		cred := &WorkloadIdentityCredential{
			TenantID:           tenant,
			ClientID:           client,
			FederatedTokenFile: tokenFile,
			AuthorityBaseURL:   c.AuthorityBaseURL,
			HTTPClient:         c.HTTPClient,
		}
		return cred.Token(ctx)
	}
	return "", stacktrace.NewError("no AZURE_CLIENT_SECRET or AZURE_FEDERATED_TOKEN_FILE set")
}

// Chain tries an ordered list of credential strategies and caches the first
// token that works.  The cached token is read-only for the rest of the run;
// a Chain is meant to be built once per process invocation.
type Chain struct {
	Providers []TokenProvider

	token  string
	source string
}

var _ TokenProvider = (*Chain)(nil)

// NewDefaultChain builds the standard strategy order: explicit client secret
// (from the environment), workload identity, the local az CLI session, then
// the generic environment fallback.
func NewDefaultChain(exec Executor, httpClient func(*http.Request) (*http.Response, error)) *Chain {
	return &Chain{
		Providers: []TokenProvider{
			&ClientSecretCredential{
				TenantID:     osGetenv("AZURE_TENANT_ID"),
				ClientID:     osGetenv("AZURE_CLIENT_ID"),
				ClientSecret: osGetenv("AZURE_CLIENT_SECRET"),
				HTTPClient:   httpClient,
			},
			&WorkloadIdentityCredential{
				TenantID:           osGetenv("AZURE_TENANT_ID"),
				ClientID:           osGetenv("AZURE_CLIENT_ID"),
				FederatedTokenFile: osGetenv("AZURE_FEDERATED_TOKEN_FILE"),
				HTTPClient:         httpClient,
			},
			&CLICredential{Exec: exec},
			&EnvironmentCredential{HTTPClient: httpClient},
		},
	}
}

// Name implements TokenProvider.  Once a token has been acquired the name of
// the winning strategy is reported.
func (c *Chain) Name() string {
	if c.source != "" {
		return c.source
	}
	return "credential chain"
}

// Token implements TokenProvider.  Strategies are tried in order and the first
// success wins; when none succeeds an AuthError enumerating every attempt is
// returned.
func (c *Chain) Token(ctx context.Context) (string, error) {
	if c.token != "" {
		return c.token, nil
	}

	attempts := make([]CredentialAttempt, 0, len(c.Providers))
	for _, p := range c.Providers {
		token, err := p.Token(ctx)
		if err == nil && token != "" {
			c.token = token
			c.source = p.Name()
			return token, nil
		}
		if err == nil {
			err = stacktrace.NewError("empty token")
		}
		attempts = append(attempts, CredentialAttempt{Strategy: p.Name(), Err: err})
	}

	return "", stacktrace.Propagate(&AuthError{Attempts: attempts}, "authentication failed")
}
