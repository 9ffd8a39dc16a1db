package executor

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"api-test-engine/internal/types"
)

const (
	// MaxResponseSize limits how much of a response body is read for assertions
	MaxResponseSize = 10 * 1024 * 1024

	// SnippetSize is how much of the body is kept in an Outcome
	SnippetSize = 512
)

// NewHTTPClient returns the client used against the target. It carries no
// overall timeout; every call is bounded by its own context instead.
func NewHTTPClient(insecure bool) *http.Client {
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure},
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		ForceAttemptHTTP2:   true,
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// assertions apply to the endpoint's own response
			return http.ErrUseLastResponse
		},
	}
}

// errStructural marks a case that cannot be turned into a request
var errStructural = errors.New("malformed test case")

// buildRequest creates an HTTP request for the given test case
func buildRequest(ctx context.Context, baseURL string, tc types.TestCase) (*http.Request, error) {
	if tc.ID == "" || tc.EndpointID == "" {
		return nil, fmt.Errorf("%w: missing case or endpoint reference", errStructural)
	}
	if tc.Request.Method == "" || !strings.HasPrefix(tc.Request.Path, "/") {
		return nil, fmt.Errorf("%w: request needs a method and an absolute path", errStructural)
	}
	for _, a := range tc.Assertions {
		if !knownAssertion(a.Type) {
			return nil, fmt.Errorf("%w: unknown assertion %q", errStructural, a.Type)
		}
	}

	// Replace path parameters
	path := tc.Request.Path
	for _, p := range tc.Request.PathParams {
		path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(fmt.Sprint(p.Value)))
	}
	if strings.ContainsAny(path, "{}") {
		return nil, fmt.Errorf("%w: unresolved path placeholder in %s", errStructural, path)
	}

	target := strings.TrimRight(baseURL, "/") + path
	if len(tc.Request.Query) > 0 {
		// Encoded by hand to keep declaration order; url.Values sorts keys.
		parts := make([]string, 0, len(tc.Request.Query))
		for _, q := range tc.Request.Query {
			parts = append(parts, url.QueryEscape(q.Name)+"="+url.QueryEscape(fmt.Sprint(q.Value)))
		}
		target += "?" + strings.Join(parts, "&")
	}
	if _, err := url.ParseRequestURI(target); err != nil {
		return nil, fmt.Errorf("%w: %v", errStructural, err)
	}

	var body io.Reader
	if tc.Request.Body != nil {
		bodyBytes, err := json.Marshal(tc.Request.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to marshal request body: %v", errStructural, err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, tc.Request.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errStructural, err)
	}
	for _, h := range tc.Request.Headers {
		req.Header.Set(h.Name, h.Value)
	}
	return req, nil
}

// classifyError maps a client error onto the outcome taxonomy
func classifyError(err error) (types.ErrorKind, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.ErrTimeout, "no response before per-case timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.ErrTimeout, netErr.Error()
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return types.ErrTransport, "dns: " + dnsErr.Error()
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return types.ErrTransport, "connection refused: " + err.Error()
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return types.ErrTransport, "connection reset: " + err.Error()
	}

	var recordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &recordErr) || errors.As(err, &certErr) ||
		errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) {
		return types.ErrTransport, "tls: " + err.Error()
	}

	return types.ErrTransport, err.Error()
}

func snippet(body []byte) string {
	if len(body) <= SnippetSize {
		return string(body)
	}
	return string(body[:SnippetSize])
}
