package modules

import (
	"context"
	"strings"
	"sync"

	"github.com/TenantGuard/go-api/tenantguard/graph"
	"github.com/TenantGuard/go-api/tenantguard/postgres/models"
	kvstore "github.com/TenantGuard/go-api/tenantguard/store"
)

// stubClient serves canned documents per endpoint.
type stubClient struct {
	docs  map[string]*graph.Document
	errs  map[string]error
	perms []string
}

func newStubClient() *stubClient {
	return &stubClient{
		docs: make(map[string]*graph.Document),
		errs: make(map[string]error),
	}
}

func (c *stubClient) addPage(endpoint string, items []map[string]any, nextLink string) {
	value := make([]any, 0, len(items))
	for _, item := range items {
		value = append(value, item)
	}
	raw := map[string]any{"value": value}
	if nextLink != "" {
		raw["@odata.nextLink"] = nextLink
	}
	c.docs[endpoint] = graph.NewDocument(raw)
}

func (c *stubClient) GetDocument(ctx context.Context, endpoint string) (*graph.Document, error) {
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

// memoryKV is an in-memory KVStore for exercising baseline persistence.
type memoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string]string)}
}

func (m *memoryKV) SetValue(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryKV) SetValueWithTTL(ctx context.Context, key, value string, ttlSeconds int) error {
	return m.SetValue(ctx, key, value)
}

func (m *memoryKV) GetValue(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", kvstore.ErrKeyNotFound
	}
	return v, nil
}

func (m *memoryKV) ListKeys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memoryKV) DeleteValue(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryKV) Close() error { return nil }

// recordingStore captures persisted inventory items.
type recordingStore struct {
	saved []models.InventoryItem
	err   error
}

func (s *recordingStore) SaveInventoryItems(ctx context.Context, items []models.InventoryItem) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, items...)
	return nil
}
