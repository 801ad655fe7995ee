package store

import "time"

// PostureSnapshot represents the scored state of one completed run, cached
// for trend queries without touching PostgreSQL.
type PostureSnapshot struct {
	SnapshotID   string            `json:"snapshot_id"` // run identifier
	TenantID     string            `json:"tenant_id"`
	Timestamp    time.Time         `json:"timestamp"`
	OverallScore *int              `json:"overall_score,omitempty"`
	ByDomain     []DomainScoreStat `json:"by_domain"`
	Metadata     SnapshotMetadata  `json:"metadata"`
}

// DomainScoreStat is the per-domain slice of a posture snapshot.
type DomainScoreStat struct {
	Domain        string `json:"domain"`
	Score         int    `json:"score"`
	Grade         string `json:"grade"`
	Available     bool   `json:"available"`
	Critical      int    `json:"critical"`
	High          int    `json:"high"`
	Medium        int    `json:"medium"`
	Low           int    `json:"low"`
	PassedChecks  int    `json:"passed_checks"`
	FailedChecks  int    `json:"failed_checks"`
}

// SnapshotMetadata contains metadata about the snapshot.
type SnapshotMetadata struct {
	TotalFindings      int   `json:"total_findings"`
	DomainsAssessed    int   `json:"domains_assessed"`
	DomainsAvailable   int   `json:"domains_available"`
	SnapshotDurationMs int64 `json:"snapshot_duration_ms"`
}

// InventoryBaseline is the fingerprint set an inventory module compares
// against to produce added/removed/modified delta counts.
type InventoryBaseline struct {
	TenantID  string            `json:"tenant_id"`
	Domain    string            `json:"domain"`
	Timestamp time.Time         `json:"timestamp"`
	// Items maps item identifier to a content fingerprint.
	Items map[string]string `json:"items"`
}
