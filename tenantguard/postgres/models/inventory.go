package models

import (
	"gorm.io/gorm"
)

// InventoryItem is one entity persisted by an inventory module (an
// application, service principal, device, …) tied to the tenant and the
// collection snapshot that observed it.
type InventoryItem struct {
	gorm.Model
	TenantID string `gorm:"index"`
	// SnapshotID groups the items captured by one inventory collection.
	SnapshotID  string `gorm:"index"`
	Domain      string `gorm:"index"`
	ItemID      string `gorm:"index"`
	ItemType    string
	DisplayName string
	// Attributes is the JSON-encoded bag of item properties worth retaining.
	Attributes string
}
