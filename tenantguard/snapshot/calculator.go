package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TenantGuard/go-api/tenantguard"
	"github.com/TenantGuard/go-api/tenantguard/postgres"
	"github.com/TenantGuard/go-api/tenantguard/postgres/models"
	"github.com/TenantGuard/go-api/tenantguard/store"
)

// PostureCalculator builds posture snapshots from completed runs in
// PostgreSQL and stores them in the KV cache.
type PostureCalculator struct {
	kvStore store.KVStore
}

// NewPostureCalculator creates a new PostureCalculator instance.
func NewPostureCalculator(kvStore store.KVStore) *PostureCalculator {
	return &PostureCalculator{kvStore: kvStore}
}

// CalculateSnapshot loads a run's scores and finding counts and produces the
// cacheable snapshot. The snapshot ID is timestamp-prefixed so lexical order
// matches recency.
func (pc *PostureCalculator) CalculateSnapshot(runID string) (*store.PostureSnapshot, error) {
	db := postgres.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database connection not available")
	}

	startTime := time.Now()

	var run models.AssessmentRun
	if err := db.Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var tenant models.Tenant
	if err := db.First(&tenant, run.TenantID).Error; err != nil {
		return nil, fmt.Errorf("failed to load tenant for run %s: %w", runID, err)
	}

	var scores []tenantguard.DomainScore
	if run.ScoreSummary != "" {
		if err := json.Unmarshal([]byte(run.ScoreSummary), &scores); err != nil {
			return nil, fmt.Errorf("failed to parse score summary for run %s: %w", runID, err)
		}
	}

	stamp := time.Now().UTC()
	if run.CompletedAt != nil {
		stamp = run.CompletedAt.UTC()
	}

	snapshot := &store.PostureSnapshot{
		// Format: YYYY-MM-DD-HHMMSS-<runID> so ListSnapshots sorts by recency.
		SnapshotID:   stamp.Format("2006-01-02-150405") + "-" + runID,
		TenantID:     tenant.TenantID,
		Timestamp:    stamp,
		OverallScore: run.OverallScore,
	}

	available := 0
	for _, s := range scores {
		if s.IsAvailable {
			available++
		}
		snapshot.ByDomain = append(snapshot.ByDomain, store.DomainScoreStat{
			Domain:       string(s.Domain),
			Score:        s.Score,
			Grade:        s.Grade,
			Available:    s.IsAvailable,
			Critical:     s.CriticalFindings,
			High:         s.HighFindings,
			Medium:       s.MediumFindings,
			Low:          s.LowFindings,
			PassedChecks: s.PassedChecks,
			FailedChecks: s.FailedChecks,
		})
	}

	var totalFindings int64
	if err := db.Model(&models.Finding{}).Where("run_id = ?", run.ID).Count(&totalFindings).Error; err != nil {
		return nil, fmt.Errorf("failed to count findings for run %s: %w", runID, err)
	}

	snapshot.Metadata = store.SnapshotMetadata{
		TotalFindings:      int(totalFindings),
		DomainsAssessed:    len(scores),
		DomainsAvailable:   available,
		SnapshotDurationMs: time.Since(startTime).Milliseconds(),
	}

	return snapshot, nil
}

// SaveSnapshot stores a snapshot in the KV cache.
func (pc *PostureCalculator) SaveSnapshot(ctx context.Context, snapshot *store.PostureSnapshot) error {
	key := fmt.Sprintf("posture:snapshot:%s", snapshot.SnapshotID)

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return pc.kvStore.SetValue(ctx, key, string(data))
}
