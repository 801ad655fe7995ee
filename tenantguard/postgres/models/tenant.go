package models

import (
	"gorm.io/gorm"
)

// Tenant is one onboarded customer directory.
type Tenant struct {
	gorm.Model
	TenantID   string `gorm:"uniqueIndex"`
	Name       string
	APIBaseURL string
	// Status: active, suspended, offboarded
	Status string
	Runs   []AssessmentRun
}
