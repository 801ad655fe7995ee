package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/TenantGuard/go-api/tenantguard"
	"github.com/TenantGuard/go-api/tenantguard/assess"
	"github.com/TenantGuard/go-api/tenantguard/assess/catalog"
	"github.com/TenantGuard/go-api/tenantguard/graph"
)

const (
	directoryRolesEndpoint = "directoryRoles"

	globalAdminRole = "Global Administrator"

	maxGlobalAdmins        = 5
	minGlobalAdmins        = 2
	maxStandingAssignments = 20
)

// PrivilegedRolesModule assesses directory role assignments: global
// administrator bounds, guests in privileged roles, and standing assignment
// sprawl. Role membership comes from a per-role secondary fetch that degrades
// to a warning when a role's members cannot be read.
type PrivilegedRolesModule struct {
	cat *catalog.Catalog
}

// NewPrivilegedRolesModule builds the module over a check catalog.
func NewPrivilegedRolesModule(cat *catalog.Catalog) *PrivilegedRolesModule {
	return &PrivilegedRolesModule{cat: cat}
}

func (m *PrivilegedRolesModule) Domain() tenantguard.Domain {
	return tenantguard.DomainPrivilegedAccess
}

func (m *PrivilegedRolesModule) DisplayName() string { return "Privileged Access" }

func (m *PrivilegedRolesModule) Description() string {
	return "Assesses directory role assignments for administrator redundancy, privileged guests, and standing-access sprawl."
}

func (m *PrivilegedRolesModule) RequiredPermissions() []string {
	return []string{"RoleManagement.Read.Directory", "Directory.Read.All"}
}

// ValidatePermissions implements the advisory preflight.
func (m *PrivilegedRolesModule) ValidatePermissions(ctx context.Context, client graph.Client) bool {
	for _, perm := range m.RequiredPermissions() {
		if !client.HasPermission(ctx, perm) {
			return false
		}
	}
	return true
}

// Collect pulls the activated directory roles and overlays each role's
// member list.
func (m *PrivilegedRolesModule) Collect(ctx context.Context, client graph.Client) (*tenantguard.CollectionResult, error) {
	result := tenantguard.NewCollectionResult(m.Domain())

	roles, warnings := assess.CollectRawPages(ctx, client, directoryRolesEndpoint)
	for _, w := range warnings {
		result.AddWarning(w)
	}
	if len(roles) == 0 && len(warnings) > 0 {
		return result.Fail(warnings[0]), nil
	}

	for _, role := range roles {
		roleID, _ := role["id"].(string)
		if roleID == "" {
			continue
		}
		endpoint := fmt.Sprintf("directoryRoles/%s/members?$select=id,userPrincipalName,userType", roleID)
		assess.Enrich(ctx, client, result, "Role membership", endpoint, func(docs []*graph.Document) {
			members := make([]map[string]any, 0, len(docs))
			for _, d := range docs {
				members = append(members, d.Raw())
			}
			role["members"] = members
		})
	}

	result.Payload["roles"] = roles
	stampPayload(result)
	return result, nil
}

// Normalize converts role assignments into compliance findings.
func (m *PrivilegedRolesModule) Normalize(result *tenantguard.CollectionResult) *tenantguard.NormalizedFindings {
	out := &tenantguard.NormalizedFindings{
		Domain:  m.Domain(),
		Metrics: make(map[string]any),
	}

	roles := docsFromPayload(result.Payload["roles"])

	totalAssignments := 0
	var globalAdmins []string
	var privilegedGuests []string

	for _, role := range roles {
		name := role.String("displayName")
		members := docsFromPayload(role.Raw()["members"])
		totalAssignments += len(members)

		for _, member := range members {
			upn := member.String("userPrincipalName")
			if name == globalAdminRole {
				globalAdmins = append(globalAdmins, upn)
			}
			if member.String("userType") == "Guest" || strings.Contains(upn, "#EXT#") {
				privilegedGuests = append(privilegedGuests, fmt.Sprintf("%s (%s)", upn, name))
			}
		}
	}

	out.Findings = append(out.Findings, catalogFinding(m.cat, "PRV-001",
		len(globalAdmins) <= maxGlobalAdmins,
		fmt.Sprintf("%d global administrators (limit %d)", len(globalAdmins), maxGlobalAdmins),
		globalAdmins))

	out.Findings = append(out.Findings, catalogFinding(m.cat, "PRV-002",
		len(globalAdmins) >= minGlobalAdmins,
		fmt.Sprintf("%d global administrators (minimum %d for redundancy)", len(globalAdmins), minGlobalAdmins),
		nil))

	out.Findings = append(out.Findings, catalogFinding(m.cat, "PRV-003",
		len(privilegedGuests) == 0,
		fmt.Sprintf("%d guest accounts hold privileged roles", len(privilegedGuests)),
		privilegedGuests))

	out.Findings = append(out.Findings, catalogFinding(m.cat, "PRV-004",
		totalAssignments <= maxStandingAssignments,
		fmt.Sprintf("%d standing privileged assignments (threshold %d)", totalAssignments, maxStandingAssignments),
		nil))

	out.Metrics["activatedRoles"] = len(roles)
	out.Metrics["standingAssignments"] = totalAssignments
	out.Metrics["globalAdmins"] = len(globalAdmins)
	out.Summary = append(out.Summary, fmt.Sprintf("%d activated roles with %d standing assignments", len(roles), totalAssignments))

	return out
}

// Score implements AssessmentModule via the shared scorer.
func (m *PrivilegedRolesModule) Score(findings *tenantguard.NormalizedFindings) tenantguard.DomainScore {
	return assess.ScoreFindings(findings)
}
