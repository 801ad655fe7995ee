package assess

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TenantGuard/go-api/tenantguard"
	"github.com/TenantGuard/go-api/tenantguard/graph"
)

// permissionGapMarkers are the error-text fragments that identify expected
// unavailability: the endpoint exists but the tenant's permissions or license
// tier do not cover it. Substring matching is deliberate — the API does not
// expose a stable error-code table across endpoint versions, and graceful
// degradation beats hard version coupling.
var permissionGapMarkers = []string{
	"forbidden",
	"unauthorized",
	"premium",
	"license",
	"payment required",
	"status 402",
	"status 403",
}

// IsPermissionGap reports whether an error message looks like a permission or
// licensing gap rather than a transient failure.
func IsPermissionGap(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range permissionGapMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Enrich runs one best-effort enrichment pass: fetch the secondary endpoint
// (following pagination) and hand the fetched documents to overlay, which
// augments the already-collected primary entities in memory.
//
// Both failure flavors degrade to a warning on the result, never an error:
// expected unavailability (permission/license gap) gets an explanatory
// message, anything else gets the raw error. Documents fetched before a
// mid-pagination failure are still overlaid.
func Enrich(ctx context.Context, client graph.Client, result *tenantguard.CollectionResult, name, endpoint string, overlay func([]*graph.Document)) {
	docs, err := fetchEnrichmentPages(ctx, client, endpoint)
	if err != nil {
		if IsPermissionGap(err.Error()) {
			slog.Info("Enrichment unavailable for tenant", "enrichment", name, "endpoint", endpoint, "error", err)
			result.AddWarning(fmt.Sprintf("%s enrichment unavailable (requires additional permissions or licensing): %v", name, err))
			result.MarkUnavailable(endpoint)
		} else {
			slog.Warn("Enrichment failed", "enrichment", name, "endpoint", endpoint, "error", err)
			result.AddWarning(fmt.Sprintf("%s enrichment failed: %v", name, err))
		}
		if len(docs) == 0 {
			return
		}
	}

	overlay(docs)
}

// fetchEnrichmentPages accumulates every page of an enrichment endpoint.
// Unlike the primary collection protocol it surfaces the page error to the
// caller for classification, alongside whatever was fetched before it.
func fetchEnrichmentPages(ctx context.Context, client graph.Client, endpoint string) ([]*graph.Document, error) {
	var docs []*graph.Document

	next := endpoint
	for next != "" {
		if err := ctx.Err(); err != nil {
			return docs, err
		}

		doc, err := client.GetDocument(ctx, next)
		if err != nil {
			return docs, err
		}
		if doc == nil {
			break
		}

		docs = append(docs, doc.Items()...)
		next = doc.NextLink()
	}

	return docs, nil
}
