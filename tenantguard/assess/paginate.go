package assess

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TenantGuard/go-api/tenantguard/graph"
)

// CollectAllPages follows pagination cursors from the given endpoint,
// converting each item of each page with convert and accumulating the
// results. A fetch failure on any page is recorded as a warning and stops
// pagination early without discarding already-accumulated items: partial
// collection is preferred over total failure.
//
// Cancellation is observed between pages, so cancellation latency is bounded
// by one page fetch.
func CollectAllPages[T any](ctx context.Context, client graph.Client, endpoint string, convert func(*graph.Document) T) ([]T, []string) {
	var items []T
	var warnings []string

	next := endpoint
	for next != "" {
		if err := ctx.Err(); err != nil {
			warnings = append(warnings, fmt.Sprintf("collection of %s stopped: %v", endpoint, err))
			break
		}

		doc, err := client.GetDocument(ctx, next)
		if err != nil {
			slog.Warn("Page fetch failed, keeping partial collection", "endpoint", next, "collected", len(items), "error", err)
			warnings = append(warnings, fmt.Sprintf("failed to fetch %s: %v", next, err))
			break
		}
		if doc == nil {
			break
		}

		for _, item := range doc.Items() {
			items = append(items, convert(item))
		}

		next = doc.NextLink()
	}

	return items, warnings
}

// CollectRawPages is CollectAllPages with items kept as loosely-typed field
// maps, the shape modules store in their raw payload.
func CollectRawPages(ctx context.Context, client graph.Client, endpoint string) ([]map[string]any, []string) {
	return CollectAllPages(ctx, client, endpoint, func(d *graph.Document) map[string]any {
		return d.Raw()
	})
}
