package models

import (
	"github.com/google/uuid"
)

const (
	ActionCompose  = "compose"
	ActionTeardown = "teardown"
)

type Configuration struct {
	Job      uuid.UUID           `json:"job"`              // UUID
	Run      uuid.UUID           `json:"run"`              // UUID
	Runner   string              `json:"runner"`           // runner name/id
	Platform string              `json:"platform"`         // docker | memory
	Action   string              `json:"action"`           // compose | teardown
	Prefix   string              `json:"prefix,omitempty"` // naming prefix, defaults to "poc"
	Cluster  ClusterHandle       `json:"cluster"`
	Listener ListenerHandle      `json:"listener"`
	Services []ServiceDescriptor `json:"services"`
}

// ClusterHandle names the pre-existing cluster the services are placed on.
type ClusterHandle struct {
	Name    string `json:"name"`
	Network string `json:"network"`          // network context for security boundaries
	Domain  string `json:"domain,omitempty"` // registry domain
}

// ListenerHandle names the pre-existing load balancer listener.
type ListenerHandle struct {
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
	Port    *uint16 `json:"port,omitempty"`
}
