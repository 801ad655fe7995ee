package models

import (
	"gorm.io/gorm"
)

// Finding is the durable record of one normalized compliance check outcome.
// Created once per module execution, never mutated, deleted only by run
// deletion (cascade).
type Finding struct {
	gorm.Model
	FindingID   string `gorm:"uniqueIndex"`
	RunID       uint   `gorm:"index"`
	Domain      string `gorm:"index"`
	CheckID     string
	CheckName   string
	Title       string
	Description string
	Severity    string `gorm:"index"`
	IsCompliant bool
	Category    string
	Evidence    string
	Remediation string
	// References and AffectedResources are newline-joined lists.
	References        string
	AffectedResources string
}
