// Package graph implements the client for the tenant's directory/security
// API. Responses are loosely typed (see Document) because the API's schema is
// partially dynamic across endpoints and versions.
package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client is the operation surface the assessment pipeline consumes. A nil
// document with a nil error means the resource does not exist.
type Client interface {
	// GetDocument fetches one endpoint and returns its raw JSON object.
	GetDocument(ctx context.Context, endpoint string) (*Document, error)
	// GetCollection fetches one endpoint and returns its top-level item array.
	// It does not follow pagination cursors; see the collection protocol.
	GetCollection(ctx context.Context, endpoint string) ([]*Document, error)
	// TestConnection reports whether the API is reachable with the stored
	// credentials.
	TestConnection(ctx context.Context) bool
	// GrantedPermissions returns the permission names granted to the client.
	GrantedPermissions(ctx context.Context) ([]string, error)
	// HasPermission reports whether the named permission was granted.
	HasPermission(ctx context.Context, name string) bool
}

// HTTPClient is the production Client implementation.
type HTTPClient struct {
	baseURL string
	token   string
	httpc   *http.Client

	permMux sync.Mutex
	perms   []string
}

// NewClient builds a tenant-scoped client. baseURL is the API root; token is
// the bearer credential obtained by the caller.
func NewClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// resolveURL turns a relative endpoint into an absolute URL. Pagination
// cursors arrive absolute and are used verbatim.
func (c *HTTPClient) resolveURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// GetDocument implements Client.
func (c *HTTPClient) GetDocument(ctx context.Context, endpoint string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolveURL(endpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		// Status text is included so permission/licensing gaps ("Forbidden",
		// "Payment Required") stay detectable from the message alone.
		return nil, fmt.Errorf("received status %d %s from %s", resp.StatusCode, http.StatusText(resp.StatusCode), endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	doc, err := ParseDocument(body)
	if err != nil {
		return nil, fmt.Errorf("invalid response from %s: %w", endpoint, err)
	}
	return doc, nil
}

// GetCollection implements Client.
func (c *HTTPClient) GetCollection(ctx context.Context, endpoint string) ([]*Document, error) {
	doc, err := c.GetDocument(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return doc.Items(), nil
}

// TestConnection implements Client by probing the organization endpoint.
func (c *HTTPClient) TestConnection(ctx context.Context) bool {
	doc, err := c.GetDocument(ctx, "organization")
	if err != nil {
		slog.Debug("Connectivity check failed", "error", err)
		return false
	}
	return doc != nil
}

// GrantedPermissions implements Client. The result is cached for the client's
// lifetime since grants do not change during a run.
func (c *HTTPClient) GrantedPermissions(ctx context.Context) ([]string, error) {
	c.permMux.Lock()
	defer c.permMux.Unlock()
	if c.perms != nil {
		return c.perms, nil
	}

	doc, err := c.GetDocument(ctx, "me/grantedPermissions")
	if err != nil {
		return nil, fmt.Errorf("failed to read granted permissions: %w", err)
	}
	if doc == nil {
		return nil, nil
	}

	perms := doc.StringSlice("value")
	if perms == nil {
		// Some API versions return {value:[{value:"Scope.Read"},…]} instead
		// of a bare string array.
		for _, item := range doc.Items() {
			if s := item.String("value"); s != "" {
				perms = append(perms, s)
			}
		}
	}
	c.perms = perms
	return perms, nil
}

// HasPermission implements Client with a case-insensitive match.
func (c *HTTPClient) HasPermission(ctx context.Context, name string) bool {
	perms, err := c.GrantedPermissions(ctx)
	if err != nil {
		slog.Debug("Permission lookup failed", "permission", name, "error", err)
		return false
	}
	for _, p := range perms {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}
