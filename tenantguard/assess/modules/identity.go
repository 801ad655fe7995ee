package modules

import (
	"context"
	"fmt"

	"github.com/TenantGuard/go-api/tenantguard"
	"github.com/TenantGuard/go-api/tenantguard/assess"
	"github.com/TenantGuard/go-api/tenantguard/assess/catalog"
	"github.com/TenantGuard/go-api/tenantguard/graph"
)

const (
	usersEndpoint      = "users?$select=id,displayName,userPrincipalName,accountEnabled,userType,createdDateTime,signInActivity"
	mfaReportEndpoint  = "reports/authenticationMethods/userRegistrationDetails"
	riskyUsersEndpoint = "identityProtection/riskyUsers"

	staleAccountDays = 90
)

// IdentityModule assesses the user population: MFA coverage, stale accounts,
// guest proportion, and risk signals. MFA and risk data come from
// license-gated enrichment endpoints and degrade to warnings when a tenant
// lacks them.
type IdentityModule struct {
	cat *catalog.Catalog
}

// NewIdentityModule builds the module over a check catalog.
func NewIdentityModule(cat *catalog.Catalog) *IdentityModule {
	return &IdentityModule{cat: cat}
}

func (m *IdentityModule) Domain() tenantguard.Domain { return tenantguard.DomainIdentity }
func (m *IdentityModule) DisplayName() string        { return "Identity & Users" }

func (m *IdentityModule) Description() string {
	return "Assesses the user population for MFA coverage, stale accounts, guest proportion, and high-risk sign-in signals."
}

func (m *IdentityModule) RequiredPermissions() []string {
	return []string{"User.Read.All"}
}

// ValidatePermissions implements the advisory preflight.
func (m *IdentityModule) ValidatePermissions(ctx context.Context, client graph.Client) bool {
	for _, perm := range m.RequiredPermissions() {
		if !client.HasPermission(ctx, perm) {
			return false
		}
	}
	return true
}

// Collect pulls the user list and overlays MFA registration and risk state.
func (m *IdentityModule) Collect(ctx context.Context, client graph.Client) (*tenantguard.CollectionResult, error) {
	result := tenantguard.NewCollectionResult(m.Domain())

	users, warnings := assess.CollectRawPages(ctx, client, usersEndpoint)
	for _, w := range warnings {
		result.AddWarning(w)
	}
	if len(users) == 0 && len(warnings) > 0 {
		// Nothing collected and the first page already failed: the primary
		// collection is unusable.
		return result.Fail(warnings[0]), nil
	}

	byID := make(map[string]map[string]any, len(users))
	for _, u := range users {
		if id, ok := u["id"].(string); ok {
			byID[id] = u
		}
	}

	mfaAvailable := false
	assess.Enrich(ctx, client, result, "MFA registration", mfaReportEndpoint, func(docs []*graph.Document) {
		mfaAvailable = true
		for _, d := range docs {
			if u, ok := byID[d.String("id")]; ok {
				u["mfaRegistered"] = d.Bool("isMfaRegistered")
				u["mfaCapable"] = d.Bool("isMfaCapable")
			}
		}
	})

	riskAvailable := false
	assess.Enrich(ctx, client, result, "Risk state", riskyUsersEndpoint, func(docs []*graph.Document) {
		riskAvailable = true
		for _, d := range docs {
			if u, ok := byID[d.String("id")]; ok {
				u["riskLevel"] = d.String("riskLevel")
				u["riskState"] = d.String("riskState")
			}
		}
	})

	result.Payload["users"] = users
	result.Payload["mfaAvailable"] = mfaAvailable
	result.Payload["riskAvailable"] = riskAvailable
	stampPayload(result)
	return result, nil
}

// Normalize converts the raw user payload into compliance findings. Pure: no
// I/O, deterministic given the collected payload.
func (m *IdentityModule) Normalize(result *tenantguard.CollectionResult) *tenantguard.NormalizedFindings {
	out := &tenantguard.NormalizedFindings{
		Domain:  m.Domain(),
		Metrics: make(map[string]any),
	}

	users := docsFromPayload(result.Payload["users"])
	now := payloadTime(result.Payload)
	mfaAvailable, _ := result.Payload["mfaAvailable"].(bool)
	riskAvailable, _ := result.Payload["riskAvailable"].(bool)

	total := len(users)
	enabledMembers := 0
	guests := 0
	mfaRegistered := 0
	var mfaMissing, stale, risky []string

	for _, u := range users {
		upn := u.String("userPrincipalName")
		isGuest := u.String("userType") == "Guest"
		if isGuest {
			guests++
		}
		if !u.Bool("accountEnabled") {
			continue
		}

		if !isGuest {
			enabledMembers++
			if mfaAvailable {
				if u.Bool("mfaRegistered") {
					mfaRegistered++
				} else {
					mfaMissing = append(mfaMissing, upn)
				}
			}
		}

		lastSignIn := u.Time("lastSignInDateTime")
		if activity := u.Doc("signInActivity"); activity != nil {
			lastSignIn = activity.Time("lastSignInDateTime")
		}
		reference := u.Time("createdDateTime")
		if !lastSignIn.IsZero() {
			reference = lastSignIn
		}
		if !reference.IsZero() && now.Sub(reference).Hours() > staleAccountDays*24 {
			stale = append(stale, upn)
		}

		if riskAvailable && u.String("riskLevel") == "high" && u.String("riskState") == "atRisk" {
			risky = append(risky, upn)
		}
	}

	if mfaAvailable {
		out.Findings = append(out.Findings, catalogFinding(m.cat, "IDN-001",
			len(mfaMissing) == 0,
			countEvidence(mfaRegistered, enabledMembers, "enabled member accounts have MFA registered"),
			mfaMissing))
	} else {
		out.Summary = append(out.Summary, "MFA registration data unavailable for this tenant; coverage check skipped")
	}

	out.Findings = append(out.Findings, catalogFinding(m.cat, "IDN-002",
		len(stale) == 0,
		countEvidence(len(stale), total, fmt.Sprintf("accounts inactive for over %d days", staleAccountDays)),
		stale))

	guestHeavy := total > 0 && guests >= 5 && float64(guests)/float64(total) > 0.25
	out.Findings = append(out.Findings, catalogFinding(m.cat, "IDN-003",
		!guestHeavy,
		countEvidence(guests, total, "accounts are guests"),
		nil))

	if riskAvailable {
		out.Findings = append(out.Findings, catalogFinding(m.cat, "IDN-004",
			len(risky) == 0,
			countEvidence(len(risky), total, "accounts flagged at high risk"),
			risky))
	} else {
		out.Summary = append(out.Summary, "Risk detection data unavailable for this tenant; risky-user check skipped")
	}

	out.Metrics["totalUsers"] = total
	out.Metrics["enabledMembers"] = enabledMembers
	out.Metrics["guestUsers"] = guests
	out.Metrics["staleAccounts"] = len(stale)
	out.Summary = append(out.Summary, fmt.Sprintf("%d users assessed (%d enabled members, %d guests)", total, enabledMembers, guests))

	return out
}

// Score implements AssessmentModule via the shared scorer.
func (m *IdentityModule) Score(findings *tenantguard.NormalizedFindings) tenantguard.DomainScore {
	return assess.ScoreFindings(findings)
}
