package models

import "time"

type DeploymentController string

// DeploymentRolling delegates rollout to the orchestrator's own rolling controller.
const DeploymentRolling DeploymentController = "rolling"

type ManagedService struct {
	Name                   string               `json:"name"`
	TenantID               string               `json:"tenant_id"`
	Cluster                string               `json:"cluster"`
	TaskFamily             string               `json:"task_family"`
	NetworkRule            string               `json:"network_rule"`
	ReplicaCount           uint                 `json:"replica_count"`
	HealthCheckGracePeriod time.Duration        `json:"health_check_grace_period"`
	AssignPublicIP         bool                 `json:"assign_public_ip"`
	DeploymentController   DeploymentController `json:"deployment_controller"`
}
