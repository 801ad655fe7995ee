package modules

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TenantGuard/go-api/tenantguard"
	"github.com/TenantGuard/go-api/tenantguard/assess"
	"github.com/TenantGuard/go-api/tenantguard/assess/catalog"
	"github.com/TenantGuard/go-api/tenantguard/graph"
	"github.com/TenantGuard/go-api/tenantguard/postgres/models"
	kvstore "github.com/TenantGuard/go-api/tenantguard/store"
)

const (
	servicePrincipalsEndpoint = "servicePrincipals?$select=id,appId,displayName,servicePrincipalType,accountEnabled,passwordCredentials,keyCredentials,tags"

	credentialExpiryWindow = 30 * 24 * time.Hour
)

// InventoryStore is the persistence surface inventory modules write through.
type InventoryStore interface {
	SaveInventoryItems(ctx context.Context, items []models.InventoryItem) error
}

// ApplicationsInventoryModule collects the tenant's service principals,
// persists them as inventory items, and reports delta counts versus the
// previous collection's baseline kept in the KV store.
type ApplicationsInventoryModule struct {
	cat   *catalog.Catalog
	items InventoryStore
	kv    kvstore.KVStore
}

// NewApplicationsInventory builds the module. kv may be nil, in which case
// delta computation is skipped.
func NewApplicationsInventory(cat *catalog.Catalog, items InventoryStore, kv kvstore.KVStore) *ApplicationsInventoryModule {
	return &ApplicationsInventoryModule{cat: cat, items: items, kv: kv}
}

func (m *ApplicationsInventoryModule) Domain() tenantguard.Domain {
	return tenantguard.DomainApplications
}

func (m *ApplicationsInventoryModule) DisplayName() string { return "Application Inventory" }

func (m *ApplicationsInventoryModule) Description() string {
	return "Inventories service principals and applications, tracking credential expiry and collection-to-collection drift."
}

func (m *ApplicationsInventoryModule) RequiredPermissions() []string {
	return []string{"Application.Read.All"}
}

// Collect pulls service principals, persists them, and computes deltas.
func (m *ApplicationsInventoryModule) Collect(ctx context.Context, client graph.Client, tenantID, snapshotID string) *tenantguard.InventoryCollectionResult {
	result := &tenantguard.InventoryCollectionResult{
		Domain:      m.Domain(),
		Success:     true,
		ItemsByType: make(map[string]int),
	}

	principals, warnings := assess.CollectRawPages(ctx, client, servicePrincipalsEndpoint)
	for _, w := range warnings {
		result.AddWarning(w)
	}
	if len(principals) == 0 && len(warnings) > 0 {
		result.Success = false
		result.ErrorMessage = warnings[0]
		result.UnavailableEndpoints = append(result.UnavailableEndpoints, servicePrincipalsEndpoint)
		return result
	}

	now := time.Now().UTC()
	items := make([]models.InventoryItem, 0, len(principals))
	fingerprints := make(map[string]string, len(principals))
	expiringCreds := 0

	for _, raw := range principals {
		doc := graph.NewDocument(raw)
		id := doc.String("id")
		if id == "" {
			continue
		}

		itemType := doc.StringOr("servicePrincipalType", "Application")
		result.ItemsByType[itemType]++

		if hasCredentialExpiringWithin(doc, now, credentialExpiryWindow) {
			expiringCreds++
		}

		attrs, err := json.Marshal(raw)
		if err != nil {
			result.AddWarning(fmt.Sprintf("failed to serialize attributes for %s: %v", id, err))
			attrs = []byte("{}")
		}

		items = append(items, models.InventoryItem{
			TenantID:    tenantID,
			SnapshotID:  snapshotID,
			Domain:      string(m.Domain()),
			ItemID:      id,
			ItemType:    itemType,
			DisplayName: doc.String("displayName"),
			Attributes:  string(attrs),
		})
		fingerprints[id] = fingerprint(attrs)
	}

	if err := m.items.SaveInventoryItems(ctx, items); err != nil {
		result.Success = false
		result.ErrorMessage = fmt.Sprintf("failed to persist inventory: %v", err)
		return result
	}
	result.ItemCount = len(items)

	if expiringCreds > 0 {
		if check, ok := m.cat.Get("APP-001"); ok {
			result.AddWarning(fmt.Sprintf("%s: %d applications have credentials expiring within 30 days", check.Title, expiringCreds))
		}
	}

	result.Delta = m.computeDelta(ctx, tenantID, fingerprints, result)
	return result
}

// computeDelta compares the collected fingerprints against the stored
// baseline and replaces the baseline. Best effort: KV failures degrade to
// warnings.
func (m *ApplicationsInventoryModule) computeDelta(ctx context.Context, tenantID string, fingerprints map[string]string, result *tenantguard.InventoryCollectionResult) *tenantguard.InventoryDelta {
	if m.kv == nil {
		return nil
	}

	key := fmt.Sprintf("inventory:baseline:%s:%s", tenantID, m.Domain())

	var delta *tenantguard.InventoryDelta
	raw, err := m.kv.GetValue(ctx, key)
	switch {
	case err == nil:
		var baseline kvstore.InventoryBaseline
		if err := json.Unmarshal([]byte(raw), &baseline); err != nil {
			result.AddWarning(fmt.Sprintf("inventory baseline for %s is corrupt, resetting: %v", m.Domain(), err))
		} else {
			delta = diffBaseline(baseline.Items, fingerprints)
		}
	case errors.Is(err, kvstore.ErrKeyNotFound):
		slog.Debug("No inventory baseline yet", "tenant", tenantID, "domain", m.Domain())
	default:
		result.AddWarning(fmt.Sprintf("failed to load inventory baseline: %v", err))
		return nil
	}

	baseline := kvstore.InventoryBaseline{
		TenantID:  tenantID,
		Domain:    string(m.Domain()),
		Timestamp: time.Now().UTC(),
		Items:     fingerprints,
	}
	data, err := json.Marshal(baseline)
	if err != nil {
		result.AddWarning(fmt.Sprintf("failed to serialize inventory baseline: %v", err))
		return delta
	}
	if err := m.kv.SetValue(ctx, key, string(data)); err != nil {
		result.AddWarning(fmt.Sprintf("failed to store inventory baseline: %v", err))
	}

	return delta
}

// diffBaseline computes added/removed/modified counts between two
// fingerprint sets.
func diffBaseline(previous, current map[string]string) *tenantguard.InventoryDelta {
	delta := &tenantguard.InventoryDelta{}
	for id, fp := range current {
		prev, existed := previous[id]
		switch {
		case !existed:
			delta.Added++
		case prev != fp:
			delta.Modified++
		}
	}
	for id := range previous {
		if _, exists := current[id]; !exists {
			delta.Removed++
		}
	}
	return delta
}

// hasCredentialExpiringWithin reports whether any password or key credential
// on the principal expires inside the window.
func hasCredentialExpiringWithin(doc *graph.Document, now time.Time, window time.Duration) bool {
	for _, field := range []string{"passwordCredentials", "keyCredentials"} {
		for _, cred := range doc.Docs(field) {
			end := cred.Time("endDateTime")
			if !end.IsZero() && end.After(now) && end.Sub(now) < window {
				return true
			}
		}
	}
	return false
}

func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
