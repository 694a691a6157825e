package models

import "time"

type HealthCheck struct {
	Path     string        `json:"path"`
	Interval time.Duration `json:"interval"`
	Timeout  time.Duration `json:"timeout"`
}

// RoutingRule binds a listener to a managed service through a target group.
type RoutingRule struct {
	TargetGroupName string      `json:"target_group_name"`
	Listener        string      `json:"listener"`
	ServiceName     string      `json:"service_name"`
	TenantID        string      `json:"tenant_id"`
	Protocol        Protocol    `json:"protocol"`
	Port            uint16      `json:"port"`
	HealthCheck     HealthCheck `json:"health_check"`
}
