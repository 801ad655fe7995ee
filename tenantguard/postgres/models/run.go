package models

import (
	"time"

	"gorm.io/gorm"
)

// AssessmentRun is one execution of the assessment pipeline for a tenant.
// The engine is the sole writer once execution starts; rows are immutable
// after a terminal state except for the score fields finalized at completion.
type AssessmentRun struct {
	gorm.Model
	RunID       string `gorm:"uniqueIndex"`
	TenantID    uint
	Status      string
	InitiatedBy string
	// Domains is the comma-joined set of domains selected for this run.
	Domains      string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	OverallScore *int
	// ScoreSummary is the JSON-encoded list of per-domain scores.
	ScoreSummary string
	ErrorMessage string
	Findings     []Finding     `gorm:"constraint:OnDelete:CASCADE"`
	RawSnapshots []RawSnapshot `gorm:"constraint:OnDelete:CASCADE"`
}
