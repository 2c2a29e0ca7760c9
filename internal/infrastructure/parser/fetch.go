package parser

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

const defaultUserAgent = "FeedDigest/1.0"

func newHTTPClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return client
}

// fetchBody performs a GET and hands back the body; callers close it.
func fetchBody(ctx context.Context, client *http.Client, userAgent, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s returned %s", target, resp.Status)
	}

	return resp.Body, nil
}

// plainText strips markup from feed teasers and collapses whitespace.
func plainText(policy *bluemonday.Policy, raw string) string {
	cleaned := html.UnescapeString(policy.Sanitize(raw))
	return strings.Join(strings.Fields(cleaned), " ")
}
