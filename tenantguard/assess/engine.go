package assess

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/TenantGuard/go-api/tenantguard"
	"github.com/TenantGuard/go-api/tenantguard/graph"
	"github.com/TenantGuard/go-api/tenantguard/postgres/models"
	"github.com/google/uuid"
)

// UnitOfWork is the persistence surface the engine consumes. A failure from
// any of these after module execution surfaces as a run-level Failed
// transition.
type UnitOfWork interface {
	GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error)
	GetTenantByPK(ctx context.Context, id uint) (*models.Tenant, error)
	CreateRun(ctx context.Context, run *models.AssessmentRun) error
	GetRun(ctx context.Context, runID string) (*models.AssessmentRun, error)
	UpdateRun(ctx context.Context, run *models.AssessmentRun) error
	SaveRawSnapshot(ctx context.Context, snap *models.RawSnapshot) error
	SaveFindings(ctx context.Context, findings []models.Finding) error
}

// QuotaService gates and records assessment consumption.
type QuotaService interface {
	CanRunAssessment(ctx context.Context, tenant *models.Tenant) (bool, error)
	RecordAssessmentRun(ctx context.Context, tenant *models.Tenant) error
}

// ClientFactory builds a tenant-scoped API client from stored credentials.
type ClientFactory interface {
	ClientFor(ctx context.Context, tenant *models.Tenant) (graph.Client, error)
}

// ProgressSink receives engine progress updates. Sinks must not block; the
// engine calls them inline between modules.
type ProgressSink func(tenantguard.ProgressUpdate)

// Engine drives registered modules through collect, normalize, and score for
// one run at a time, isolating per-module failures so a single module can
// never abort a run.
type Engine struct {
	uow       UnitOfWork
	quota     QuotaService
	clients   ClientFactory
	registry  *Registry
	sinks     []ProgressSink
	preflight bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithProgressSink registers an observer for progress updates. Zero or more
// sinks may be registered.
func WithProgressSink(sink ProgressSink) EngineOption {
	return func(e *Engine) {
		e.sinks = append(e.sinks, sink)
	}
}

// WithPermissionPreflight makes the engine skip modules whose advisory
// permission validation fails, recording them as unavailable instead of
// attempting collection.
func WithPermissionPreflight() EngineOption {
	return func(e *Engine) {
		e.preflight = true
	}
}

// NewEngine builds an engine over its collaborators.
func NewEngine(uow UnitOfWork, quota QuotaService, clients ClientFactory, registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		uow:      uow,
		quota:    quota,
		clients:  clients,
		registry: registry,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartAssessment validates the tenant and quota, resolves the domain set
// (explicit list, or all registered domains when empty), and creates a
// Pending run. It does not execute anything; see ExecuteAssessment.
func (e *Engine) StartAssessment(ctx context.Context, tenantID string, domains []tenantguard.Domain, initiatedBy string) (string, error) {
	tenant, err := e.uow.GetTenant(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("failed to start assessment: %w", err)
	}

	ok, err := e.quota.CanRunAssessment(ctx, tenant)
	if err != nil {
		return "", fmt.Errorf("failed to check assessment quota for tenant %s: %w", tenantID, err)
	}
	if !ok {
		return "", fmt.Errorf("assessment quota exceeded for tenant %s", tenantID)
	}

	if len(domains) == 0 {
		domains = e.registry.Domains()
	}

	run := &models.AssessmentRun{
		RunID:       uuid.NewString(),
		TenantID:    tenant.ID,
		Status:      string(tenantguard.RunStatusPending),
		InitiatedBy: initiatedBy,
		Domains:     joinDomains(domains),
	}
	if err := e.uow.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("failed to start assessment: %w", err)
	}

	slog.Info("Assessment run created", "runId", run.RunID, "tenant", tenantID, "domains", run.Domains, "initiatedBy", initiatedBy)
	return run.RunID, nil
}

// ExecuteAssessment runs a Pending assessment to a terminal state. Modules
// execute sequentially in registration order; cancellation is observed at
// module boundaries and yields a Cancelled run with partial results kept.
func (e *Engine) ExecuteAssessment(ctx context.Context, runID string) error {
	run, err := e.uow.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to execute assessment: %w", err)
	}

	tenant, err := e.uow.GetTenantByPK(ctx, run.TenantID)
	if err != nil {
		return e.failRun(ctx, run, fmt.Errorf("failed to load tenant for run %s: %w", runID, err))
	}

	client, err := e.clients.ClientFor(ctx, tenant)
	if err != nil {
		return e.failRun(ctx, run, fmt.Errorf("failed to build API client for tenant %s: %w", tenant.TenantID, err))
	}

	now := time.Now().UTC()
	run.Status = string(tenantguard.RunStatusRunning)
	run.StartedAt = &now
	if err := e.uow.UpdateRun(ctx, run); err != nil {
		return e.failRun(ctx, run, err)
	}

	modules := e.registry.Assessment(splitDomains(run.Domains))
	total := len(modules)

	var scores []tenantguard.DomainScore
	var findings []models.Finding
	cancelled := false

	for i, mod := range modules {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		e.emitProgress(run.RunID, i*100/max(total, 1), "Assessing "+mod.DisplayName(), mod.Domain())

		score := e.executeModule(ctx, client, run, mod, &findings)
		scores = append(scores, score)
	}

	if !cancelled {
		e.emitProgress(run.RunID, 100, "Finalizing assessment", "")
	}

	// Terminal bookkeeping runs on a detached context: a cancelled run must
	// still land in Cancelled with its partial results persisted.
	bookCtx := context.WithoutCancel(ctx)

	if err := e.uow.SaveFindings(bookCtx, findings); err != nil {
		return e.failRun(bookCtx, run, err)
	}

	summary, err := json.Marshal(scores)
	if err != nil {
		return e.failRun(bookCtx, run, fmt.Errorf("failed to serialize score summary: %w", err))
	}

	completed := time.Now().UTC()
	run.CompletedAt = &completed
	run.OverallScore = OverallScore(scores)
	run.ScoreSummary = string(summary)
	if cancelled {
		run.Status = string(tenantguard.RunStatusCancelled)
	} else {
		run.Status = string(tenantguard.RunStatusCompleted)
	}
	if err := e.uow.UpdateRun(bookCtx, run); err != nil {
		return e.failRun(bookCtx, run, err)
	}

	if !cancelled {
		// Consumption is recorded only for completed runs. A bookkeeping
		// failure here must not fail an otherwise-successful run.
		if err := e.quota.RecordAssessmentRun(bookCtx, tenant); err != nil {
			slog.Warn("Failed to record assessment consumption", "runId", run.RunID, "tenant", tenant.TenantID, "error", err)
		}
	}

	slog.Info("Assessment run finished", "runId", run.RunID, "status", run.Status, "domains", len(scores), "findings", len(findings))
	return nil
}

// executeModule is the isolated failure boundary around one module. Whatever
// happens inside — expected collection failure, unexpected error, panic — the
// outcome is a DomainScore entry, never an aborted run.
func (e *Engine) executeModule(ctx context.Context, client graph.Client, run *models.AssessmentRun, mod AssessmentModule, findings *[]models.Finding) (score tenantguard.DomainScore) {
	domain := mod.Domain()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Module panicked", "runId", run.RunID, "domain", domain, "panic", r)
			score = UnavailableScore(domain, fmt.Sprintf("module panic: %v", r))
		}
	}()

	if e.preflight && !mod.ValidatePermissions(ctx, client) {
		reason := fmt.Sprintf("required permissions not granted: %s", strings.Join(mod.RequiredPermissions(), ", "))
		slog.Warn("Skipping module, permission preflight failed", "runId", run.RunID, "domain", domain)
		e.saveSnapshot(ctx, run, domain, nil, reason)
		return UnavailableScore(domain, reason)
	}

	result, err := mod.Collect(ctx, client)
	if err != nil {
		slog.Error("Module collection failed unexpectedly", "runId", run.RunID, "domain", domain, "error", err)
		e.saveSnapshot(ctx, run, domain, nil, err.Error())
		return UnavailableScore(domain, err.Error())
	}

	// The raw snapshot is the audit trail: persisted whether or not
	// collection succeeded.
	e.saveSnapshot(ctx, run, domain, result.Payload, result.ErrorMessage)

	if !result.Success {
		slog.Warn("Module collection reported failure", "runId", run.RunID, "domain", domain, "reason", result.ErrorMessage)
		return UnavailableScore(domain, result.ErrorMessage)
	}

	normalized := mod.Normalize(result)
	score = mod.Score(normalized)

	for _, f := range normalized.Findings {
		*findings = append(*findings, models.Finding{
			FindingID:         uuid.NewString(),
			RunID:             run.ID,
			Domain:            string(domain),
			CheckID:           f.CheckID,
			CheckName:         f.CheckName,
			Title:             f.Title,
			Description:       f.Description,
			Severity:          string(f.Severity),
			IsCompliant:       f.IsCompliant,
			Category:          f.Category,
			Evidence:          f.Evidence,
			Remediation:       f.Remediation,
			References:        strings.Join(f.References, "\n"),
			AffectedResources: strings.Join(f.AffectedResources, "\n"),
		})
	}

	return score
}

// saveSnapshot persists the raw payload captured from one module's Collect
// phase. Failures are logged and swallowed: losing the audit copy must not
// take the module's score down with it. The write is detached from the run's
// context so a cancellation arriving mid-module cannot discard the audit
// trail of the work already done.
func (e *Engine) saveSnapshot(ctx context.Context, run *models.AssessmentRun, domain tenantguard.Domain, payload map[string]any, errMsg string) {
	ctx = context.WithoutCancel(ctx)

	serialized := "{}"
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			slog.Warn("Failed to serialize raw payload", "runId", run.RunID, "domain", domain, "error", err)
		} else {
			serialized = string(data)
		}
	}

	snap := &models.RawSnapshot{
		RunID:        run.ID,
		Domain:       string(domain),
		Payload:      serialized,
		PayloadBytes: len(serialized),
		ErrorMessage: errMsg,
	}
	if err := e.uow.SaveRawSnapshot(ctx, snap); err != nil {
		slog.Warn("Failed to persist raw snapshot", "runId", run.RunID, "domain", domain, "error", err)
	}
}

// RunInventory executes the registered inventory modules for a tenant,
// sequentially and with the same per-module isolation as assessments. Items
// are persisted by the modules themselves; the returned results describe what
// was persisted. snapshotID groups the collected items and is generated when
// empty.
func (e *Engine) RunInventory(ctx context.Context, tenantID, snapshotID string) ([]*tenantguard.InventoryCollectionResult, error) {
	tenant, err := e.uow.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to run inventory: %w", err)
	}

	client, err := e.clients.ClientFor(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to build API client for tenant %s: %w", tenantID, err)
	}

	if snapshotID == "" {
		snapshotID = uuid.NewString()
	}

	modules := e.registry.Inventory()
	results := make([]*tenantguard.InventoryCollectionResult, 0, len(modules))

	for i, mod := range modules {
		if ctx.Err() != nil {
			break
		}

		e.emitProgress(snapshotID, i*100/max(len(modules), 1), "Collecting "+mod.DisplayName(), mod.Domain())
		results = append(results, e.executeInventoryModule(ctx, client, mod, tenantID, snapshotID))
	}

	return results, nil
}

// executeInventoryModule isolates one inventory module behind the same
// failure boundary assessment modules get.
func (e *Engine) executeInventoryModule(ctx context.Context, client graph.Client, mod InventoryModule, tenantID, snapshotID string) (result *tenantguard.InventoryCollectionResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Inventory module panicked", "domain", mod.Domain(), "panic", r)
			result = &tenantguard.InventoryCollectionResult{
				Domain:       mod.Domain(),
				ErrorMessage: fmt.Sprintf("module panic: %v", r),
			}
		}
	}()

	return mod.Collect(ctx, client, tenantID, snapshotID)
}

// failRun transitions a run to Failed with the captured message. The original
// error is returned so callers see the cause, not the bookkeeping. The write
// is detached from the caller's context so the failure record survives even
// when that context is already dead.
func (e *Engine) failRun(ctx context.Context, run *models.AssessmentRun, cause error) error {
	ctx = context.WithoutCancel(ctx)

	completed := time.Now().UTC()
	run.Status = string(tenantguard.RunStatusFailed)
	run.ErrorMessage = cause.Error()
	run.CompletedAt = &completed
	if err := e.uow.UpdateRun(ctx, run); err != nil {
		slog.Error("Failed to mark run as failed", "runId", run.RunID, "error", err)
	}
	slog.Error("Assessment run failed", "runId", run.RunID, "error", cause)
	return cause
}

func (e *Engine) emitProgress(runID string, percent int, operation string, domain tenantguard.Domain) {
	update := tenantguard.ProgressUpdate{
		RunID:     runID,
		Percent:   percent,
		Operation: operation,
		Domain:    domain,
		Timestamp: time.Now().UTC(),
	}
	for _, sink := range e.sinks {
		sink(update)
	}
}

func joinDomains(domains []tenantguard.Domain) string {
	parts := make([]string, len(domains))
	for i, d := range domains {
		parts[i] = string(d)
	}
	return strings.Join(parts, ",")
}

func splitDomains(s string) []tenantguard.Domain {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]tenantguard.Domain, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, tenantguard.Domain(p))
		}
	}
	return out
}
