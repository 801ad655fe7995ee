package modules

import (
	"context"
	"errors"
	"testing"

	"github.com/TenantGuard/go-api/tenantguard"
	"github.com/TenantGuard/go-api/tenantguard/assess/catalog"
)

func capPayload(policies []map[string]any) *tenantguard.CollectionResult {
	result := tenantguard.NewCollectionResult(tenantguard.DomainConditionalAccess)
	result.Payload["policies"] = policies
	return result
}

func mfaPolicy(state string) map[string]any {
	return map[string]any{
		"displayName": "Require MFA for all users",
		"state":       state,
		"conditions": map[string]any{
			"users":          map[string]any{"includeUsers": []any{"All"}},
			"clientAppTypes": []any{"browser", "mobileAppsAndDesktopClients"},
		},
		"grantControls": map[string]any{"builtInControls": []any{"mfa"}},
	}
}

func legacyBlockPolicy() map[string]any {
	return map[string]any{
		"displayName": "Block legacy authentication",
		"state":       "enabled",
		"conditions": map[string]any{
			"users":          map[string]any{"includeUsers": []any{"All"}},
			"clientAppTypes": []any{"exchangeActiveSync", "other"},
		},
		"grantControls": map[string]any{"builtInControls": []any{"block"}},
	}
}

func TestConditionalAccessWellConfigured(t *testing.T) {
	t.Log("\n🔍 Testing a well-configured policy set...")

	mod := NewConditionalAccessModule(catalog.Default())
	findings := mod.Normalize(capPayload([]map[string]any{
		mfaPolicy("enabled"),
		legacyBlockPolicy(),
	}))

	for _, id := range []string{"CAP-001", "CAP-002", "CAP-003", "CAP-004"} {
		f := findingByID(t, findings, id)
		if f == nil {
			t.Fatalf("❌ Finding %s missing", id)
		}
		if !f.IsCompliant {
			t.Errorf("❌ %s should pass: %s", id, f.Evidence)
		}
	}

	t.Log("\n✅ Well-configured policy set test passed")
}

func TestConditionalAccessReportOnlyDoesNotEnforce(t *testing.T) {
	t.Log("\n🔍 Testing report-only policy handling...")

	mod := NewConditionalAccessModule(catalog.Default())
	findings := mod.Normalize(capPayload([]map[string]any{
		mfaPolicy("enabledForReportingButNotEnforced"),
	}))

	// A report-only MFA policy satisfies neither the enforcement check nor
	// the drift check.
	if f := findingByID(t, findings, "CAP-001"); f == nil || f.IsCompliant {
		t.Error("❌ Report-only MFA policy must not count as enforcement")
	}
	if f := findingByID(t, findings, "CAP-003"); f == nil || f.IsCompliant {
		t.Error("❌ Report-only policies should be flagged as drift")
	}

	t.Log("\n✅ Report-only policy handling test passed")
}

func TestConditionalAccessScopedMFADoesNotCount(t *testing.T) {
	scoped := mfaPolicy("enabled")
	scoped["conditions"].(map[string]any)["users"] = map[string]any{"includeUsers": []any{"group-finance"}}

	mod := NewConditionalAccessModule(catalog.Default())
	findings := mod.Normalize(capPayload([]map[string]any{scoped}))

	if f := findingByID(t, findings, "CAP-001"); f == nil || f.IsCompliant {
		t.Error("an MFA policy scoped to one group must not satisfy the all-users check")
	}
}

func TestConditionalAccessDisabledClutter(t *testing.T) {
	disabled := mfaPolicy("disabled")

	mod := NewConditionalAccessModule(catalog.Default())
	findings := mod.Normalize(capPayload([]map[string]any{mfaPolicy("enabled"), legacyBlockPolicy(), disabled}))

	f := findingByID(t, findings, "CAP-004")
	if f == nil || f.IsCompliant {
		t.Fatal("disabled policies should be flagged as clutter")
	}
	if len(f.AffectedResources) != 1 {
		t.Errorf("the disabled policy should be named: %v", f.AffectedResources)
	}
}

func TestConditionalAccessCollectUnavailable(t *testing.T) {
	client := newStubClient()
	client.errs[policiesEndpoint] = errors.New("received status 402 Payment Required from identity/conditionalAccess/policies")

	mod := NewConditionalAccessModule(catalog.Default())
	result, err := mod.Collect(context.Background(), client)
	if err != nil {
		t.Fatalf("license gating is expected, not an error: %v", err)
	}
	if result.Success {
		t.Error("a gated policies endpoint should fail the result")
	}
	if len(result.UnavailableEndpoints) != 1 {
		t.Errorf("the endpoint should be marked unavailable: %v", result.UnavailableEndpoints)
	}
}
