package modules

import (
	"context"
	"fmt"
	"slices"

	"github.com/TenantGuard/go-api/tenantguard"
	"github.com/TenantGuard/go-api/tenantguard/assess"
	"github.com/TenantGuard/go-api/tenantguard/assess/catalog"
	"github.com/TenantGuard/go-api/tenantguard/graph"
)

const policiesEndpoint = "identity/conditionalAccess/policies"

// ConditionalAccessModule assesses the conditional access policy set. The
// policies endpoint itself is license-gated on some tenants, so the whole
// domain can legitimately come back unavailable.
type ConditionalAccessModule struct {
	cat *catalog.Catalog
}

// NewConditionalAccessModule builds the module over a check catalog.
func NewConditionalAccessModule(cat *catalog.Catalog) *ConditionalAccessModule {
	return &ConditionalAccessModule{cat: cat}
}

func (m *ConditionalAccessModule) Domain() tenantguard.Domain {
	return tenantguard.DomainConditionalAccess
}

func (m *ConditionalAccessModule) DisplayName() string { return "Conditional Access" }

func (m *ConditionalAccessModule) Description() string {
	return "Assesses conditional access policies for MFA enforcement, legacy authentication blocking, and policy hygiene."
}

func (m *ConditionalAccessModule) RequiredPermissions() []string {
	return []string{"Policy.Read.All"}
}

// ValidatePermissions implements the advisory preflight.
func (m *ConditionalAccessModule) ValidatePermissions(ctx context.Context, client graph.Client) bool {
	return client.HasPermission(ctx, "Policy.Read.All")
}

// Collect pulls the conditional access policy set.
func (m *ConditionalAccessModule) Collect(ctx context.Context, client graph.Client) (*tenantguard.CollectionResult, error) {
	result := tenantguard.NewCollectionResult(m.Domain())

	policies, warnings := assess.CollectRawPages(ctx, client, policiesEndpoint)
	for _, w := range warnings {
		result.AddWarning(w)
	}
	if len(policies) == 0 && len(warnings) > 0 {
		result.MarkUnavailable(policiesEndpoint)
		return result.Fail(warnings[0]), nil
	}

	result.Payload["policies"] = policies
	stampPayload(result)
	return result, nil
}

// Normalize converts the policy set into compliance findings.
func (m *ConditionalAccessModule) Normalize(result *tenantguard.CollectionResult) *tenantguard.NormalizedFindings {
	out := &tenantguard.NormalizedFindings{
		Domain:  m.Domain(),
		Metrics: make(map[string]any),
	}

	policies := docsFromPayload(result.Payload["policies"])

	enabled := 0
	reportOnly := 0
	disabled := 0
	mfaForAllUsers := false
	legacyAuthBlocked := false
	var reportOnlyNames, disabledNames []string

	for _, p := range policies {
		name := p.String("displayName")
		switch p.String("state") {
		case "enabled":
			enabled++
		case "enabledForReportingButNotEnforced":
			reportOnly++
			reportOnlyNames = append(reportOnlyNames, name)
			continue
		default:
			disabled++
			disabledNames = append(disabledNames, name)
			continue
		}

		conditions := p.Doc("conditions")
		grants := p.Doc("grantControls")

		appliesToAllUsers := false
		coversLegacyClients := false
		if conditions != nil {
			if users := conditions.Doc("users"); users != nil {
				appliesToAllUsers = slices.Contains(users.StringSlice("includeUsers"), "All")
			}
			clientApps := conditions.StringSlice("clientAppTypes")
			coversLegacyClients = slices.Contains(clientApps, "exchangeActiveSync") || slices.Contains(clientApps, "other")
		}
		if grants != nil {
			controls := grants.StringSlice("builtInControls")
			if appliesToAllUsers && slices.Contains(controls, "mfa") {
				mfaForAllUsers = true
			}
			if coversLegacyClients && slices.Contains(controls, "block") {
				legacyAuthBlocked = true
			}
		}
	}

	out.Findings = append(out.Findings, catalogFinding(m.cat, "CAP-001",
		mfaForAllUsers,
		fmt.Sprintf("%d enabled policies; MFA required for all users: %t", enabled, mfaForAllUsers),
		nil))

	out.Findings = append(out.Findings, catalogFinding(m.cat, "CAP-002",
		legacyAuthBlocked,
		fmt.Sprintf("legacy authentication blocked by an enabled policy: %t", legacyAuthBlocked),
		nil))

	out.Findings = append(out.Findings, catalogFinding(m.cat, "CAP-003",
		reportOnly == 0,
		fmt.Sprintf("%d policies in report-only mode", reportOnly),
		reportOnlyNames))

	out.Findings = append(out.Findings, catalogFinding(m.cat, "CAP-004",
		disabled == 0,
		fmt.Sprintf("%d disabled policies", disabled),
		disabledNames))

	out.Metrics["totalPolicies"] = len(policies)
	out.Metrics["enabledPolicies"] = enabled
	out.Metrics["reportOnlyPolicies"] = reportOnly
	out.Summary = append(out.Summary, fmt.Sprintf("%d policies assessed (%d enabled, %d report-only, %d disabled)", len(policies), enabled, reportOnly, disabled))

	return out
}

// Score implements AssessmentModule via the shared scorer.
func (m *ConditionalAccessModule) Score(findings *tenantguard.NormalizedFindings) tenantguard.DomainScore {
	return assess.ScoreFindings(findings)
}
