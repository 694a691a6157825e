package services

import (
	"fmt"

	"github.com/ezenkico/deploy-commander/sidecar/models"
)

const DefaultPrefix = "poc"

// Role suffixes. Each derived name is "<prefix>-<tenant><suffix>"; tenants
// cannot contain '-', so the tenant segment is recoverable from any name and
// two tenants never share one.
const (
	suffixFamily           = "-bff-task"
	suffixTaskDefinition   = "-bff-task-def"
	suffixBFFContainer     = "-bff-container"
	suffixAdapterContainer = "-nrpc-container"
	suffixSecurityGroup    = "-bff-service-sg"
	suffixService          = "-bff-service"
	suffixTargetGroup      = "-nrpc-tg"
)

// MaxTargetGroupName is the load balancer limit on target group names.
const MaxTargetGroupName = 32

func tenantName(prefix, tenantID, suffix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s-%s%s", prefix, tenantID, suffix)
}

// DeriveNames computes every resource name of a tenant's topology.
func DeriveNames(prefix, tenantID string) models.Names {
	service := tenantName(prefix, tenantID, suffixService)
	return models.Names{
		Family:           tenantName(prefix, tenantID, suffixFamily),
		TaskDefinition:   tenantName(prefix, tenantID, suffixTaskDefinition),
		AdapterContainer: tenantName(prefix, tenantID, suffixAdapterContainer),
		BFFContainer:     tenantName(prefix, tenantID, suffixBFFContainer),
		SecurityGroup:    tenantName(prefix, tenantID, suffixSecurityGroup),
		Service:          service,
		Registry:         service,
		TargetGroup:      tenantName(prefix, tenantID, suffixTargetGroup),
	}
}

// ReplicaName names the i-th running copy of a template container.
func ReplicaName(containerName string, replica int) string {
	return fmt.Sprintf("%s-%d", containerName, replica)
}
