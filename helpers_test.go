package sentinel

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
)

// fakeExecutor records invocations and replays canned output.
type fakeExecutor struct {
	calls  [][]string
	stdout []byte
	stderr []byte
	err    error
}

func (f *fakeExecutor) Execute(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.stdout, f.stderr, f.err
}

// staticTokens satisfies TokenProvider with a fixed token.
type staticTokens string

func (staticTokens) Name() string                            { return "static" }
func (t staticTokens) Token(context.Context) (string, error) { return string(t), nil }

// newTestClient starts an httptest server around handler and returns a Client
// pointed at it plus a request counter keyed by "METHOD /path".
func newTestClient(handler func(w http.ResponseWriter, r *http.Request)) (*Client, map[string]int, func()) {
	requests := map[string]int{}
	ts := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				requests[fmt.Sprintf("%s %s", r.Method, r.URL.Path)]++
				handler(w, r)
			},
		),
	)
	cli := NewClient(
		WithBaseURL(ts.URL),
		WithTokenProvider(staticTokens("test-token")),
	)
	return cli, requests, ts.Close
}
