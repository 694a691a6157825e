package models

import "github.com/google/uuid"

// Names are the deterministic resource names of one tenant's topology.
type Names struct {
	Family           string `json:"family"`
	TaskDefinition   string `json:"task_definition"`
	AdapterContainer string `json:"adapter_container"`
	BFFContainer     string `json:"bff_container"`
	SecurityGroup    string `json:"security_group"`
	Service          string `json:"service"`
	Registry         string `json:"registry"`
	TargetGroup      string `json:"target_group"`
}

// All lists every distinct name in n.
func (n Names) All() []string {
	all := []string{
		n.Family,
		n.TaskDefinition,
		n.AdapterContainer,
		n.BFFContainer,
		n.SecurityGroup,
		n.Service,
		n.Registry,
		n.TargetGroup,
	}
	seen := make(map[string]struct{}, len(all))
	out := all[:0]
	for _, s := range all {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// TopologyIDs are the identifiers the platforms returned for each resource.
type TopologyIDs struct {
	TaskTemplate   string `json:"task_template"`
	NetworkRule    string `json:"network_rule"`
	ManagedService string `json:"managed_service"`
	RegistryEntry  string `json:"registry_entry"`
	RoutingRule    string `json:"routing_rule"`
}

type ComposedTopology struct {
	ID       uuid.UUID      `json:"id"`
	TenantID string         `json:"tenant_id"`
	Names    Names          `json:"names"`
	IDs      TopologyIDs    `json:"ids"`
	Template *TaskTemplate  `json:"-"`
	Rule     NetworkRule    `json:"network_rule"`
	Service  ManagedService `json:"managed_service"`
	Registry RegistryEntry  `json:"registry_entry"`
	Route    RoutingRule    `json:"routing_rule"`
}
