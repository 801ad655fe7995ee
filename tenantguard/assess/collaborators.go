package assess

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TenantGuard/go-api/tenantguard/graph"
	"github.com/TenantGuard/go-api/tenantguard/postgres/models"
)

// UnlimitedQuota is a QuotaService that never denies and only logs
// consumption. Useful for self-hosted deployments and the CLI.
type UnlimitedQuota struct{}

// CanRunAssessment implements QuotaService.
func (UnlimitedQuota) CanRunAssessment(ctx context.Context, tenant *models.Tenant) (bool, error) {
	return true, nil
}

// RecordAssessmentRun implements QuotaService.
func (UnlimitedQuota) RecordAssessmentRun(ctx context.Context, tenant *models.Tenant) error {
	slog.Debug("Assessment run recorded", "tenant", tenant.TenantID)
	return nil
}

// TokenClientFactory builds API clients from a static bearer token and each
// tenant's stored API base URL.
type TokenClientFactory struct {
	Token   string
	Timeout time.Duration
}

// ClientFor implements ClientFactory.
func (f TokenClientFactory) ClientFor(ctx context.Context, tenant *models.Tenant) (graph.Client, error) {
	if tenant.APIBaseURL == "" {
		return nil, fmt.Errorf("tenant %s has no API base URL configured", tenant.TenantID)
	}
	if f.Token == "" {
		return nil, fmt.Errorf("no API token configured")
	}
	return graph.NewClient(tenant.APIBaseURL, f.Token, f.Timeout), nil
}
