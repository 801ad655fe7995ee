package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TenantGuard/go-api/tenantguard/store"
)

// MockKVStore implements store.KVStore in memory for testing.
type MockKVStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMockKVStore() *MockKVStore {
	return &MockKVStore{data: make(map[string]string)}
}

func (m *MockKVStore) SetValue(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockKVStore) SetValueWithTTL(ctx context.Context, key, value string, ttlSeconds int) error {
	return m.SetValue(ctx, key, value)
}

func (m *MockKVStore) GetValue(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", fmt.Errorf("key '%s': %w", key, store.ErrKeyNotFound)
	}
	return v, nil
}

func (m *MockKVStore) ListKeys(ctx context.Context, pattern string) ([]string, error) {
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

func (m *MockKVStore) DeleteValue(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockKVStore) Close() error { return nil }

func (m *MockKVStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func putSnapshot(t *testing.T, kv *MockKVStore, snapshotID, tenantID string, score int, stamp time.Time) {
	t.Helper()
	snap := store.PostureSnapshot{
		SnapshotID:   snapshotID,
		TenantID:     tenantID,
		Timestamp:    stamp,
		OverallScore: &score,
		ByDomain: []store.DomainScoreStat{
			{Domain: "identity", Score: score, Grade: "B", Available: true},
		},
		Metadata: store.SnapshotMetadata{DomainsAssessed: 1, DomainsAvailable: 1},
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("failed to marshal snapshot: %v", err)
	}
	if err := kv.SetValue(context.Background(), "posture:snapshot:"+snapshotID, string(data)); err != nil {
		t.Fatalf("failed to store snapshot: %v", err)
	}
}

// snapID builds a timestamp-prefixed snapshot ID n days after a fixed epoch.
func snapID(n int) (string, time.Time) {
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return fmt.Sprintf("%s-run-%03d", stamp.Format("2006-01-02-150405"), n), stamp
}

func TestGetSnapshot(t *testing.T) {
	t.Log("\n🔍 Testing snapshot retrieval...")

	kv := NewMockKVStore()
	manager := NewPostureManager(kv)
	ctx := context.Background()

	id, stamp := snapID(0)
	putSnapshot(t, kv, id, "contoso", 82, stamp)

	snap, err := manager.GetSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("❌ GetSnapshot failed: %v", err)
	}
	if snap.SnapshotID != id || snap.TenantID != "contoso" {
		t.Errorf("❌ Snapshot identity wrong: %+v", snap)
	}
	if snap.OverallScore == nil || *snap.OverallScore != 82 {
		t.Errorf("❌ Score not preserved: %v", snap.OverallScore)
	}

	if _, err := manager.GetSnapshot(ctx, "2099-01-01-000000-run-missing"); err == nil {
		t.Error("❌ Missing snapshots should error")
	}

	t.Log("\n✅ Snapshot retrieval test passed")
}

func TestListSnapshotsOrdering(t *testing.T) {
	t.Log("\n🔍 Testing snapshot listing order...")

	kv := NewMockKVStore()
	manager := NewPostureManager(kv)
	ctx := context.Background()

	var newest string
	for i := 0; i < 3; i++ {
		id, stamp := snapID(i)
		putSnapshot(t, kv, id, "contoso", 70+i, stamp)
		newest = id
	}
	// Unrelated keys must not leak into the listing.
	kv.SetValue(ctx, "inventory:baseline:contoso:applications", "{}")

	ids, err := manager.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("❌ ListSnapshots failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("❌ Expected 3 snapshot IDs, got %d", len(ids))
	}
	if ids[0] != newest {
		t.Errorf("❌ Newest snapshot should list first, got %s", ids[0])
	}

	latest, err := manager.GetLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("❌ GetLatestSnapshot failed: %v", err)
	}
	if latest.SnapshotID != newest {
		t.Errorf("❌ Latest mismatch: %s", latest.SnapshotID)
	}

	t.Log("\n✅ Snapshot listing order test passed")
}

func TestCleanupOldSnapshots(t *testing.T) {
	t.Log("\n🔍 Testing snapshot retention...")

	kv := NewMockKVStore()
	manager := NewPostureManager(kv)
	ctx := context.Background()

	for i := 0; i < 14; i++ {
		id, stamp := snapID(i)
		putSnapshot(t, kv, id, "contoso", 75, stamp)
	}

	if err := manager.CleanupOldSnapshots(ctx); err != nil {
		t.Fatalf("❌ Cleanup failed: %v", err)
	}
	if got := kv.count(); got != 10 {
		t.Fatalf("❌ Expected 10 retained snapshots, got %d", got)
	}

	// The survivors are the most recent ones.
	ids, _ := manager.ListSnapshots(ctx)
	oldestKept, _ := snapID(4)
	if ids[len(ids)-1] != oldestKept {
		t.Errorf("❌ Oldest retained snapshot should be %s, got %s", oldestKept, ids[len(ids)-1])
	}

	t.Log("\n✅ Snapshot retention test passed")
}

func TestGetTrendData(t *testing.T) {
	kv := NewMockKVStore()
	manager := NewPostureManager(kv)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, stamp := snapID(i)
		putSnapshot(t, kv, id, "contoso", 60+i*5, stamp)
	}
	// A corrupt entry is skipped, not fatal.
	kv.SetValue(ctx, "posture:snapshot:2025-06-30-120000-run-bad", "{not json")

	trend, err := manager.GetTrendData(ctx, 3)
	if err != nil {
		t.Fatalf("GetTrendData failed: %v", err)
	}
	if len(trend) != 2 {
		// Limit 3 selects the corrupt newest plus 2 valid ones.
		t.Fatalf("expected 2 loadable snapshots within the limit, got %d", len(trend))
	}
	if *trend[0].OverallScore != 80 || *trend[1].OverallScore != 75 {
		t.Errorf("trend should be newest-first: %d, %d", *trend[0].OverallScore, *trend[1].OverallScore)
	}

	all, err := manager.GetTrendData(ctx, 50)
	if err != nil {
		t.Fatalf("GetTrendData failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("limit above retention should cap at available snapshots, got %d", len(all))
	}
}
