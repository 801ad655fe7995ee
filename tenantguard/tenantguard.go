package tenantguard

import "time"

// ========================= Severity =========================

// Severity classifies a finding. Ordered: Critical > High > Medium > Low > Informational.
type Severity string

const (
	SeverityCritical      Severity = "critical"
	SeverityHigh          Severity = "high"
	SeverityMedium        Severity = "medium"
	SeverityLow           Severity = "low"
	SeverityInformational Severity = "informational"
)

// Rank returns the ordering value of a severity, highest first.
// Unknown severities rank below informational.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInformational:
		return 1
	}
	return 0
}

// ========================= Domain =========================

// Domain identifies one security or inventory area covered by a module.
type Domain string

const (
	DomainIdentity          Domain = "identity"
	DomainPrivilegedAccess  Domain = "privileged_access"
	DomainConditionalAccess Domain = "conditional_access"
	DomainApplications      Domain = "applications"
)

// ========================= Run =========================

// RunStatus is the lifecycle state of an assessment run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the status is a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// ========================= Collection =========================

// CollectionResult is the per-module output of the Collect phase. Expected
// conditions (permission gaps, empty pages) surface as warnings or
// unavailable endpoints, never as errors.
type CollectionResult struct {
	Domain               Domain         `json:"domain"`
	Success              bool           `json:"success"`
	ErrorMessage         string         `json:"errorMessage,omitempty"`
	Payload              map[string]any `json:"payload,omitempty"`
	Warnings             []string       `json:"warnings,omitempty"`
	UnavailableEndpoints []string       `json:"unavailableEndpoints,omitempty"`
}

// NewCollectionResult returns a successful, empty result for the domain.
func NewCollectionResult(domain Domain) *CollectionResult {
	return &CollectionResult{
		Domain:  domain,
		Success: true,
		Payload: make(map[string]any),
	}
}

// AddWarning appends a human-readable warning, preserving order.
func (r *CollectionResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// MarkUnavailable records an endpoint that could not be read, usually due to
// a permission gap.
func (r *CollectionResult) MarkUnavailable(endpoint string) {
	r.UnavailableEndpoints = append(r.UnavailableEndpoints, endpoint)
}

// Fail marks the result unsuccessful with the given reason.
func (r *CollectionResult) Fail(msg string) *CollectionResult {
	r.Success = false
	r.ErrorMessage = msg
	return r
}

// InventoryDelta holds item-count changes versus the prior baseline of the
// same tenant and domain.
type InventoryDelta struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
}

// InventoryCollectionResult is the inventory-pipeline analogue of
// CollectionResult: it reports what was persisted rather than a raw payload.
type InventoryCollectionResult struct {
	Domain               Domain          `json:"domain"`
	Success              bool            `json:"success"`
	ErrorMessage         string          `json:"errorMessage,omitempty"`
	ItemCount            int             `json:"itemCount"`
	ItemsByType          map[string]int  `json:"itemsByType,omitempty"`
	Warnings             []string        `json:"warnings,omitempty"`
	UnavailableEndpoints []string        `json:"unavailableEndpoints,omitempty"`
	Delta                *InventoryDelta `json:"delta,omitempty"`
}

// AddWarning appends a human-readable warning, preserving order.
func (r *InventoryCollectionResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// ========================= Findings =========================

// NormalizedFinding is one compliance check outcome. A compliant finding must
// never contribute score deductions.
type NormalizedFinding struct {
	CheckID           string   `json:"checkId"`
	CheckName         string   `json:"checkName"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	Severity          Severity `json:"severity"`
	IsCompliant       bool     `json:"isCompliant"`
	Category          string   `json:"category,omitempty"`
	Evidence          string   `json:"evidence,omitempty"`
	Remediation       string   `json:"remediation,omitempty"`
	References        []string `json:"references,omitempty"`
	AffectedResources []string `json:"affectedResources,omitempty"`
}

// NormalizedFindings is the per-module output of the Normalize phase.
// Transient: it exists only to feed Score and finding persistence.
type NormalizedFindings struct {
	Domain   Domain              `json:"domain"`
	Findings []NormalizedFinding `json:"findings"`
	Metrics  map[string]any      `json:"metrics,omitempty"`
	Summary  []string            `json:"summary,omitempty"`
}

// ========================= Scoring =========================

// DomainScore is the scoring result for one domain within a run.
type DomainScore struct {
	Domain             Domain   `json:"domain"`
	Score              int      `json:"score"`
	MaxScore           int      `json:"maxScore"`
	Grade              string   `json:"grade"`
	IsAvailable        bool     `json:"isAvailable"`
	UnavailableReason  string   `json:"unavailableReason,omitempty"`
	CriticalFindings   int      `json:"criticalFindings"`
	HighFindings       int      `json:"highFindings"`
	MediumFindings     int      `json:"mediumFindings"`
	LowFindings        int      `json:"lowFindings"`
	PassedChecks       int      `json:"passedChecks"`
	FailedChecks       int      `json:"failedChecks"`
	TotalChecks        int      `json:"totalChecks"`
	TopRecommendations []string `json:"topRecommendations,omitempty"`
}

// ========================= Progress =========================

// ProgressUpdate is one entry in the engine's progress stream.
type ProgressUpdate struct {
	RunID     string    `json:"runId"`
	Percent   int       `json:"percent"`
	Operation string    `json:"operation"`
	Domain    Domain    `json:"domain,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
