package catalog

import (
	"strings"
	"testing"

	"github.com/TenantGuard/go-api/tenantguard"
)

func TestDefaultCatalog(t *testing.T) {
	t.Log("\n🔍 Testing the embedded check catalog...")

	cat := Default()
	if cat.Len() == 0 {
		t.Fatal("❌ Embedded catalog is empty")
	}

	for _, id := range []string{"IDN-001", "IDN-004", "PRV-001", "PRV-003", "CAP-001", "CAP-002", "APP-001"} {
		check, ok := cat.Get(id)
		if !ok {
			t.Errorf("❌ Check %s missing from the built-in catalog", id)
			continue
		}
		if check.Title == "" || check.Remediation == "" {
			t.Errorf("❌ Check %s missing title or remediation", id)
		}
	}

	if check, _ := cat.Get("IDN-004"); check.Severity != tenantguard.SeverityCritical {
		t.Errorf("❌ Risky-user check should be critical, got %s", check.Severity)
	}
	if check, _ := cat.Get("CAP-004"); check.Severity != tenantguard.SeverityInformational {
		t.Errorf("❌ Disabled-policy clutter should be informational, got %s", check.Severity)
	}

	t.Log("\n✅ Embedded check catalog test passed")
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing id",
			yaml: "checks:\n  - title: No ID\n    severity: high\n",
			want: "missing id",
		},
		{
			name: "duplicate id",
			yaml: "checks:\n  - id: X-001\n    severity: high\n  - id: X-001\n    severity: low\n",
			want: "duplicate check id",
		},
		{
			name: "unknown severity",
			yaml: "checks:\n  - id: X-001\n    severity: catastrophic\n",
			want: "unknown severity",
		},
		{
			name: "malformed yaml",
			yaml: "checks: [",
			want: "failed to parse",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse([]byte(c.yaml))
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Errorf("expected error containing %q, got %v", c.want, err)
			}
		})
	}
}

func TestParsePreservesOrder(t *testing.T) {
	cat, err := Parse([]byte("checks:\n  - id: B-001\n    severity: low\n  - id: A-001\n    severity: high\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	ids := cat.IDs()
	if len(ids) != 2 || ids[0] != "B-001" || ids[1] != "A-001" {
		t.Errorf("catalog order should follow the document, got %v", ids)
	}
}
