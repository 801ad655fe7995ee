package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/TenantGuard/go-api/tenantguard/store"
)

// retainedSnapshots is how many posture snapshots are kept per deployment.
const retainedSnapshots = 10

// PostureManager handles snapshot CRUD and lifecycle management over the KV
// cache.
type PostureManager struct {
	kvStore    store.KVStore
	calculator *PostureCalculator
}

// NewPostureManager creates a new PostureManager instance.
func NewPostureManager(kvStore store.KVStore) *PostureManager {
	return &PostureManager{
		kvStore:    kvStore,
		calculator: NewPostureCalculator(kvStore),
	}
}

// CreateSnapshot calculates and stores the snapshot for a completed run,
// then prunes old snapshots.
func (pm *PostureManager) CreateSnapshot(ctx context.Context, runID string) (*store.PostureSnapshot, error) {
	snapshot, err := pm.calculator.CalculateSnapshot(runID)
	if err != nil {
		return nil, err
	}

	if err := pm.calculator.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	if err := pm.CleanupOldSnapshots(ctx); err != nil {
		// Log but don't fail on cleanup error
		slog.Warn("Failed to cleanup old posture snapshots", "error", err)
	}

	return snapshot, nil
}

// GetSnapshot retrieves a specific snapshot by snapshot ID.
func (pm *PostureManager) GetSnapshot(ctx context.Context, snapshotID string) (*store.PostureSnapshot, error) {
	key := fmt.Sprintf("posture:snapshot:%s", snapshotID)

	value, err := pm.kvStore.GetValue(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("snapshot not found for ID %s: %w", snapshotID, err)
	}

	var snapshot store.PostureSnapshot
	if err := json.Unmarshal([]byte(value), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

// ListSnapshots retrieves all available snapshot IDs, most recent first.
func (pm *PostureManager) ListSnapshots(ctx context.Context) ([]string, error) {
	keys, err := pm.kvStore.ListKeys(ctx, "posture:snapshot:*")
	if err != nil {
		return nil, err
	}

	snapshotIDs := make([]string, 0, len(keys))
	for _, key := range keys {
		// Key shape: posture:snapshot:<YYYY-MM-DD-HHMMSS>-<runID>
		parts := strings.SplitN(key, ":", 3)
		if len(parts) == 3 {
			snapshotIDs = append(snapshotIDs, parts[2])
		}
	}

	// Timestamp-prefixed IDs sort lexically; descending puts newest first.
	sort.Slice(snapshotIDs, func(i, j int) bool {
		return snapshotIDs[i] > snapshotIDs[j]
	})

	return snapshotIDs, nil
}

// GetTrendData retrieves up to limit recent snapshots for trend analysis.
func (pm *PostureManager) GetTrendData(ctx context.Context, limit int) ([]*store.PostureSnapshot, error) {
	if limit > retainedSnapshots {
		limit = retainedSnapshots
	}

	availableIDs, err := pm.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	if len(availableIDs) > limit {
		availableIDs = availableIDs[:limit]
	}

	snapshots := make([]*store.PostureSnapshot, 0, len(availableIDs))
	for _, snapshotID := range availableIDs {
		snapshot, err := pm.GetSnapshot(ctx, snapshotID)
		if err != nil {
			// Skip snapshots that fail to load
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

// CleanupOldSnapshots keeps only the most recent snapshots.
func (pm *PostureManager) CleanupOldSnapshots(ctx context.Context) error {
	snapshotIDs, err := pm.ListSnapshots(ctx)
	if err != nil {
		return err
	}

	if len(snapshotIDs) <= retainedSnapshots {
		return nil
	}

	for _, snapshotID := range snapshotIDs[retainedSnapshots:] {
		key := fmt.Sprintf("posture:snapshot:%s", snapshotID)
		if err := pm.kvStore.DeleteValue(ctx, key); err != nil {
			// Log but continue cleanup
			slog.Warn("Failed to delete old posture snapshot", "key", key, "error", err)
		}
	}

	return nil
}

// GetLatestSnapshot retrieves the most recent snapshot.
func (pm *PostureManager) GetLatestSnapshot(ctx context.Context) (*store.PostureSnapshot, error) {
	snapshotIDs, err := pm.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	if len(snapshotIDs) == 0 {
		return nil, fmt.Errorf("no posture snapshots available")
	}

	return pm.GetSnapshot(ctx, snapshotIDs[0])
}
