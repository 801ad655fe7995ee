// Package assess implements the assessment pipeline: the pluggable module
// contract, the collection protocols, scoring, and the orchestration engine
// that drives modules through collect, normalize, and score.
package assess

import (
	"context"

	"github.com/TenantGuard/go-api/tenantguard"
	"github.com/TenantGuard/go-api/tenantguard/graph"
)

// Module is the identity surface shared by assessment and inventory modules.
// Implementations must be stateless: safe to reuse across runs and tenants,
// parameterized only by the arguments of each call.
type Module interface {
	Domain() tenantguard.Domain
	DisplayName() string
	Description() string
	// RequiredPermissions lists the API permissions the module needs for its
	// primary collection. Enrichment-only permissions are not listed; their
	// absence degrades to warnings.
	RequiredPermissions() []string
}

// AssessmentModule is a pluggable unit implementing collect, normalize, and
// score for one security domain.
//
// Collect returns an error only for unexpected failures; expected conditions
// (missing permission, empty result) are reported on the CollectionResult
// with Success=false or warnings. Normalize and Score are pure and
// deterministic given their input.
type AssessmentModule interface {
	Module
	Collect(ctx context.Context, client graph.Client) (*tenantguard.CollectionResult, error)
	Normalize(result *tenantguard.CollectionResult) *tenantguard.NormalizedFindings
	Score(findings *tenantguard.NormalizedFindings) tenantguard.DomainScore
	// ValidatePermissions is advisory: the engine may skip the module when it
	// returns false, but Collect must independently tolerate missing
	// permissions.
	ValidatePermissions(ctx context.Context, client graph.Client) bool
}

// InventoryModule is a pluggable unit that collects and persists entities for
// one inventory domain, reporting persisted counts rather than a raw payload.
type InventoryModule interface {
	Module
	Collect(ctx context.Context, client graph.Client, tenantID, snapshotID string) *tenantguard.InventoryCollectionResult
}

// Registry holds the modules registered for a deployment, in registration
// order. The engine iterates it without knowing concrete module types.
type Registry struct {
	assessment []AssessmentModule
	inventory  []InventoryModule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends an assessment module. Registration order is execution
// order.
func (r *Registry) Register(m AssessmentModule) {
	r.assessment = append(r.assessment, m)
}

// RegisterInventory appends an inventory module.
func (r *Registry) RegisterInventory(m InventoryModule) {
	r.inventory = append(r.inventory, m)
}

// Assessment returns the registered assessment modules for the given domains,
// preserving registration order. A nil or empty domain set selects all.
func (r *Registry) Assessment(domains []tenantguard.Domain) []AssessmentModule {
	if len(domains) == 0 {
		out := make([]AssessmentModule, len(r.assessment))
		copy(out, r.assessment)
		return out
	}
	wanted := make(map[tenantguard.Domain]bool, len(domains))
	for _, d := range domains {
		wanted[d] = true
	}
	var out []AssessmentModule
	for _, m := range r.assessment {
		if wanted[m.Domain()] {
			out = append(out, m)
		}
	}
	return out
}

// Inventory returns the registered inventory modules in registration order.
func (r *Registry) Inventory() []InventoryModule {
	out := make([]InventoryModule, len(r.inventory))
	copy(out, r.inventory)
	return out
}

// Domains returns the domains of all registered assessment modules in
// registration order.
func (r *Registry) Domains() []tenantguard.Domain {
	out := make([]tenantguard.Domain, 0, len(r.assessment))
	for _, m := range r.assessment {
		out = append(out, m.Domain())
	}
	return out
}
