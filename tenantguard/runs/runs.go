// Package runs provides query helpers over persisted assessment runs,
// findings, and raw snapshots. Raw snapshots stay queryable independent of
// the findings they produced; they are the audit trail.
package runs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TenantGuard/go-api/tenantguard"
	"github.com/TenantGuard/go-api/tenantguard/postgres"
	"github.com/TenantGuard/go-api/tenantguard/postgres/models"
	"gorm.io/gorm"
)

// RunFilters narrows ListRuns results.
type RunFilters struct {
	TenantID uint
	Status   string
	Limit    int
	Offset   int
}

// FindingFilters narrows GetFindings results.
type FindingFilters struct {
	RunID       uint
	Domain      string
	Severity    string
	IsCompliant *bool
	Limit       int
	Offset      int
}

// RunStats represents aggregated finding statistics for one run.
type RunStats struct {
	TotalFindings int            `json:"total_findings"`
	NonCompliant  int            `json:"non_compliant"`
	BySeverity    map[string]int `json:"by_severity"`
	ByDomain      map[string]int `json:"by_domain"`
}

// GetRun retrieves a single run by its run identifier.
func GetRun(runID string) (*models.AssessmentRun, error) {
	db := postgres.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database connection not available")
	}

	var run models.AssessmentRun
	err := db.Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// ListRuns retrieves runs with filters, newest first, plus the unpaginated
// total.
func ListRuns(filters RunFilters) ([]models.AssessmentRun, int, error) {
	db := postgres.GetDB()
	if db == nil {
		return nil, 0, fmt.Errorf("database connection not available")
	}

	query := db.Model(&models.AssessmentRun{})
	if filters.TenantID != 0 {
		query = query.Where("tenant_id = ?", filters.TenantID)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	if filters.Limit <= 0 {
		filters.Limit = 50
	}
	if filters.Limit > 500 {
		filters.Limit = 500
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	var list []models.AssessmentRun
	err := query.
		Order("created_at DESC").
		Limit(filters.Limit).
		Offset(filters.Offset).
		Find(&list).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query runs: %w", err)
	}

	return list, int(total), nil
}

// GetFindings retrieves findings with filters plus the unpaginated total.
func GetFindings(filters FindingFilters) ([]models.Finding, int, error) {
	db := postgres.GetDB()
	if db == nil {
		return nil, 0, fmt.Errorf("database connection not available")
	}

	query := db.Model(&models.Finding{})
	if filters.RunID != 0 {
		query = query.Where("run_id = ?", filters.RunID)
	}
	if filters.Domain != "" {
		query = query.Where("domain = ?", filters.Domain)
	}
	if filters.Severity != "" {
		query = query.Where("severity = ?", filters.Severity)
	}
	if filters.IsCompliant != nil {
		query = query.Where("is_compliant = ?", *filters.IsCompliant)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count findings: %w", err)
	}

	if filters.Limit <= 0 {
		filters.Limit = 50
	}
	if filters.Limit > 500 {
		filters.Limit = 500
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	var findings []models.Finding
	err := query.
		Order(severityOrderExpr() + ", check_id").
		Limit(filters.Limit).
		Offset(filters.Offset).
		Find(&findings).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query findings: %w", err)
	}

	return findings, int(total), nil
}

// severityOrderExpr builds the ORDER BY expression that sorts the severity
// column most severe first, matching Severity.Rank. A plain column sort would
// be alphabetical (critical, high, informational, low, medium).
func severityOrderExpr() string {
	ranked := []tenantguard.Severity{
		tenantguard.SeverityCritical,
		tenantguard.SeverityHigh,
		tenantguard.SeverityMedium,
		tenantguard.SeverityLow,
		tenantguard.SeverityInformational,
	}

	var b strings.Builder
	b.WriteString("CASE severity")
	for i, s := range ranked {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", s, i)
	}
	fmt.Fprintf(&b, " ELSE %d END", len(ranked))
	return b.String()
}

// GetRawSnapshots retrieves the audit snapshots of a run in the order the
// modules executed.
func GetRawSnapshots(runID string) ([]models.RawSnapshot, error) {
	db := postgres.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database connection not available")
	}

	run, err := GetRun(runID)
	if err != nil {
		return nil, err
	}

	var snapshots []models.RawSnapshot
	err = db.Where("run_id = ?", run.ID).
		Order("id").
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query raw snapshots: %w", err)
	}

	return snapshots, nil
}

// GetRunStatistics returns aggregated finding statistics for one run.
func GetRunStatistics(runID string) (*RunStats, error) {
	db := postgres.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database connection not available")
	}

	run, err := GetRun(runID)
	if err != nil {
		return nil, err
	}

	stats := &RunStats{
		BySeverity: make(map[string]int),
		ByDomain:   make(map[string]int),
	}

	var total int64
	if err := db.Model(&models.Finding{}).Where("run_id = ?", run.ID).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count findings: %w", err)
	}
	stats.TotalFindings = int(total)

	var nonCompliant int64
	if err := db.Model(&models.Finding{}).Where("run_id = ? AND is_compliant = ?", run.ID, false).Count(&nonCompliant).Error; err != nil {
		return nil, fmt.Errorf("failed to count non-compliant findings: %w", err)
	}
	stats.NonCompliant = int(nonCompliant)

	var severityCounts []struct {
		Severity string
		Count    int
	}
	if err := db.Model(&models.Finding{}).
		Select("severity, COUNT(*) as count").
		Where("run_id = ?", run.ID).
		Group("severity").
		Scan(&severityCounts).Error; err != nil {
		return nil, fmt.Errorf("failed to count by severity: %w", err)
	}
	for _, item := range severityCounts {
		stats.BySeverity[item.Severity] = item.Count
	}

	var domainCounts []struct {
		Domain string
		Count  int
	}
	if err := db.Model(&models.Finding{}).
		Select("domain, COUNT(*) as count").
		Where("run_id = ?", run.ID).
		Group("domain").
		Scan(&domainCounts).Error; err != nil {
		return nil, fmt.Errorf("failed to count by domain: %w", err)
	}
	for _, item := range domainCounts {
		stats.ByDomain[item.Domain] = item.Count
	}

	return stats, nil
}

// DeleteRun removes a run along with its findings and raw snapshots.
func DeleteRun(runID string) error {
	db := postgres.GetDB()
	if db == nil {
		return fmt.Errorf("database connection not available")
	}

	run, err := GetRun(runID)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", run.ID).Delete(&models.Finding{}).Error; err != nil {
			return fmt.Errorf("failed to delete findings for run %s: %w", runID, err)
		}
		if err := tx.Where("run_id = ?", run.ID).Delete(&models.RawSnapshot{}).Error; err != nil {
			return fmt.Errorf("failed to delete raw snapshots for run %s: %w", runID, err)
		}
		if err := tx.Delete(run).Error; err != nil {
			return fmt.Errorf("failed to delete run %s: %w", runID, err)
		}
		return nil
	})
}
