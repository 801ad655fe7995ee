package assess

import (
	"context"
	"fmt"
	"strings"

	"github.com/TenantGuard/go-api/tenantguard/graph"
)

// stubClient serves canned documents per endpoint for testing the collection
// protocols and the engine without a live API.
type stubClient struct {
	docs     map[string]*graph.Document
	errs     map[string]error
	perms    []string
	requests []string
}

func newStubClient() *stubClient {
	return &stubClient{
		docs: make(map[string]*graph.Document),
		errs: make(map[string]error),
	}
}

func (c *stubClient) addPage(endpoint string, items []map[string]any, nextLink string) {
	raw := map[string]any{}
	value := make([]any, 0, len(items))
	for _, item := range items {
		value = append(value, item)
	}
	raw["value"] = value
	if nextLink != "" {
		raw["@odata.nextLink"] = nextLink
	}
	c.docs[endpoint] = graph.NewDocument(raw)
}

func (c *stubClient) GetDocument(ctx context.Context, endpoint string) (*graph.Document, error) {
	c.requests = append(c.requests, endpoint)
	if err, ok := c.errs[endpoint]; ok {
		return nil, err
	}
	return c.docs[endpoint], nil
}

func (c *stubClient) GetCollection(ctx context.Context, endpoint string) ([]*graph.Document, error) {
	doc, err := c.GetDocument(ctx, endpoint)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Items(), nil
}

func (c *stubClient) TestConnection(ctx context.Context) bool { return true }

func (c *stubClient) GrantedPermissions(ctx context.Context) ([]string, error) {
	return c.perms, nil
}

func (c *stubClient) HasPermission(ctx context.Context, name string) bool {
	for _, p := range c.perms {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

// pageItems builds n items with sequential IDs, e.g. u1..u3.
func pageItems(prefix string, start, n int) []map[string]any {
	items := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, map[string]any{"id": fmt.Sprintf("%s%d", prefix, start+i)})
	}
	return items
}
