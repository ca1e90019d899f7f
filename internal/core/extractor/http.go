package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultUserAgent is sent on every upstream request unless overridden
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// DefaultTimeout bounds a single upstream round trip
	DefaultTimeout = 15 * time.Second

	maxBodySize = 10 * 1024 * 1024
)

// fetcher performs bounded upstream requests. Any transport error, non-2xx
// status or deadline expiry comes back as an ErrUpstreamTransient.
type fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

func newFetcher(client *http.Client, timeout time.Duration, userAgent string) *fetcher {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &fetcher{client: client, timeout: timeout, userAgent: userAgent}
}

type requestSpec struct {
	method      string
	url         string
	body        string
	contentType string
	headers     map[string]string
}

// fetch runs the request and returns the response body
func (f *fetcher) fetch(ctx context.Context, spec requestSpec) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.do(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, NewError(CodeUpstreamTransient, "failed to read response", err)
	}
	return body, nil
}

// head checks that the URL exists without fetching its body
func (f *fetcher) head(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.do(ctx, requestSpec{method: http.MethodHead, url: url})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (f *fetcher) do(ctx context.Context, spec requestSpec) (*http.Response, error) {
	method := spec.method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if spec.body != "" {
		body = strings.NewReader(spec.body)
	}

	req, err := http.NewRequestWithContext(ctx, method, spec.url, body)
	if err != nil {
		return nil, NewError(CodeUpstreamTransient, "failed to create request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if spec.contentType != "" {
		req.Header.Set("Content-Type", spec.contentType)
	}
	for k, v := range spec.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewError(CodeUpstreamTransient, "request failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, NewError(CodeUpstreamTransient, fmt.Sprintf("%s %s returned status %d", method, spec.url, resp.StatusCode), nil)
	}
	return resp, nil
}
