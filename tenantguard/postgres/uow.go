package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/TenantGuard/go-api/tenantguard/postgres/models"
	"gorm.io/gorm"
)

// GormUnitOfWork provides the repository operations the assessment engine
// needs, backed by the shared GORM connection.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork returns a unit of work over the shared connection.
func NewUnitOfWork() (*GormUnitOfWork, error) {
	db := GetDB()
	if db == nil {
		return nil, fmt.Errorf("database connection not available: %w", GetConnectionError())
	}
	return &GormUnitOfWork{db: db}, nil
}

// newUnitOfWorkTx wraps a transaction handle so nested calls share it.
func newUnitOfWorkTx(tx *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: tx}
}

// GetTenant loads a tenant by its external tenant identifier.
func (u *GormUnitOfWork) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := u.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tenant not found: %s", tenantID)
		}
		return nil, fmt.Errorf("failed to load tenant %s: %w", tenantID, err)
	}
	return &tenant, nil
}

// CreateRun persists a new assessment run.
func (u *GormUnitOfWork) CreateRun(ctx context.Context, run *models.AssessmentRun) error {
	if err := u.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun loads a run by its external run identifier.
func (u *GormUnitOfWork) GetRun(ctx context.Context, runID string) (*models.AssessmentRun, error) {
	var run models.AssessmentRun
	err := u.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return &run, nil
}

// UpdateRun saves the mutable fields of a run.
func (u *GormUnitOfWork) UpdateRun(ctx context.Context, run *models.AssessmentRun) error {
	if err := u.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.RunID, err)
	}
	return nil
}

// GetTenantByPK loads a tenant by its primary key.
func (u *GormUnitOfWork) GetTenantByPK(ctx context.Context, id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := u.db.WithContext(ctx).First(&tenant, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tenant %d not found", id)
		}
		return nil, fmt.Errorf("failed to load tenant %d: %w", id, err)
	}
	return &tenant, nil
}

// SaveRawSnapshot persists one module's raw collection payload.
func (u *GormUnitOfWork) SaveRawSnapshot(ctx context.Context, snap *models.RawSnapshot) error {
	if err := u.db.WithContext(ctx).Create(snap).Error; err != nil {
		return fmt.Errorf("failed to save raw snapshot for domain %s: %w", snap.Domain, err)
	}
	return nil
}

// SaveFindings persists a batch of findings.
func (u *GormUnitOfWork) SaveFindings(ctx context.Context, findings []models.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	if err := u.db.WithContext(ctx).CreateInBatches(findings, 200).Error; err != nil {
		return fmt.Errorf("failed to save findings: %w", err)
	}
	return nil
}

// SaveInventoryItems persists a batch of inventory items.
func (u *GormUnitOfWork) SaveInventoryItems(ctx context.Context, items []models.InventoryItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := u.db.WithContext(ctx).CreateInBatches(items, 200).Error; err != nil {
		return fmt.Errorf("failed to save inventory items: %w", err)
	}
	return nil
}

// Transaction runs fn inside a database transaction. fn receives a unit of
// work bound to the transaction; returning an error rolls everything back.
func (u *GormUnitOfWork) Transaction(ctx context.Context, fn func(tx *GormUnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newUnitOfWorkTx(tx))
	})
}
