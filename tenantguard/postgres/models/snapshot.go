package models

import (
	"gorm.io/gorm"
)

// RawSnapshot is the audit artifact captured from one module's Collect phase:
// the serialized raw payload, persisted regardless of collection success, and
// queryable independent of the findings it produced.
type RawSnapshot struct {
	gorm.Model
	RunID  uint   `gorm:"index"`
	Domain string `gorm:"index"`
	// Payload is the free-form JSON document collected from the API.
	Payload      string
	PayloadBytes int
	ErrorMessage string
}
