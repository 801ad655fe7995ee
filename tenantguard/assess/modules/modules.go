// Package modules contains the concrete assessment and inventory modules
// shipped with the SDK. Each module is a stateless strategy object over the
// shared collection protocols in package assess.
package modules

import (
	"fmt"
	"time"

	"github.com/TenantGuard/go-api/tenantguard"
	"github.com/TenantGuard/go-api/tenantguard/assess/catalog"
	"github.com/TenantGuard/go-api/tenantguard/graph"
)

// payloadTimeKey records when collection happened so Normalize stays
// deterministic given its input.
const payloadTimeKey = "collectedAt"

// stampPayload records the collection time on a result payload.
func stampPayload(result *tenantguard.CollectionResult) {
	result.Payload[payloadTimeKey] = time.Now().UTC().Format(time.RFC3339)
}

// payloadTime reads the collection time back out of a payload.
func payloadTime(payload map[string]any) time.Time {
	if s, ok := payload[payloadTimeKey].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// docsFromPayload rewraps a payload entry as Documents. Handles both the
// in-memory shape ([]map[string]any) and the shape produced by a JSON round
// trip ([]any).
func docsFromPayload(v any) []*graph.Document {
	switch items := v.(type) {
	case []map[string]any:
		out := make([]*graph.Document, 0, len(items))
		for _, m := range items {
			out = append(out, graph.NewDocument(m))
		}
		return out
	case []any:
		out := make([]*graph.Document, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				out = append(out, graph.NewDocument(m))
			}
		}
		return out
	}
	return nil
}

// catalogFinding builds a NormalizedFinding from catalog metadata plus the
// observed outcome.
func catalogFinding(cat *catalog.Catalog, checkID string, compliant bool, evidence string, affected []string) tenantguard.NormalizedFinding {
	check, ok := cat.Get(checkID)
	if !ok {
		// Unknown IDs should not happen outside of a mis-edited catalog;
		// degrade to an informational placeholder rather than dropping the
		// outcome.
		check = catalog.Check{ID: checkID, Name: checkID, Title: checkID, Severity: tenantguard.SeverityInformational}
	}
	return tenantguard.NormalizedFinding{
		CheckID:           check.ID,
		CheckName:         check.Name,
		Title:             check.Title,
		Description:       check.Description,
		Severity:          check.Severity,
		IsCompliant:       compliant,
		Category:          check.Category,
		Evidence:          evidence,
		Remediation:       check.Remediation,
		References:        check.References,
		AffectedResources: affected,
	}
}

// countEvidence formats "x of y" evidence text.
func countEvidence(matched, total int, what string) string {
	return fmt.Sprintf("%d of %d %s", matched, total, what)
}
