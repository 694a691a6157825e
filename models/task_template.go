package models

import "slices"

type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolHTTP Protocol = "HTTP"
)

type ContainerRole string

const (
	RoleAdapter ContainerRole = "nrpc"
	RoleBFF     ContainerRole = "bff"
)

// BffLinkAlias is the name under which the adapter reaches the bff.
const BffLinkAlias = "bff"

type PortBinding struct {
	ContainerPort uint16 `json:"container_port"`
	// Zero unless the template binds host ports statically
	HostPort uint16   `json:"host_port,omitempty"`
	Protocol Protocol `json:"protocol"`
}

type LogConfig struct {
	Driver       string `json:"driver"`
	StreamPrefix string `json:"stream_prefix"`
}

// Link lets a container address Target under Alias.
type Link struct {
	Target string `json:"target"`
	Alias  string `json:"alias"`
}

type ContainerSpec struct {
	Name         string            `json:"name"`
	Role         ContainerRole     `json:"role"`
	Image        ImageRef          `json:"image"`
	CPUUnits     uint              `json:"cpu_units"`
	MemoryMiB    uint              `json:"memory_mib"`
	PortBindings []PortBinding     `json:"port_bindings"`
	LogConfig    LogConfig         `json:"log_config"`
	Env          map[string]string `json:"env,omitempty"`
	Links        []Link            `json:"links,omitempty"`

	// Names of containers in the same template that must start first
	DependsOn []string `json:"depends_on,omitempty"`
}

func (c ContainerSpec) clone() ContainerSpec {
	out := c
	out.PortBindings = slices.Clone(c.PortBindings)
	out.Links = slices.Clone(c.Links)
	out.DependsOn = slices.Clone(c.DependsOn)
	if c.Env != nil {
		out.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			out.Env[k] = v
		}
	}
	return out
}

// TaskTemplate is an immutable pair of containers run together as a unit.
// Accessors hand out copies.
type TaskTemplate struct {
	tenantID     string
	family       string
	definitionID string
	hostPorts    HostPortMode
	adapter      ContainerSpec
	bff          ContainerSpec
}

func NewTaskTemplate(tenantID, family, definitionID string, hostPorts HostPortMode, adapter, bff ContainerSpec) *TaskTemplate {
	return &TaskTemplate{
		tenantID:     tenantID,
		family:       family,
		definitionID: definitionID,
		hostPorts:    hostPorts,
		adapter:      adapter.clone(),
		bff:          bff.clone(),
	}
}

func (t *TaskTemplate) TenantID() string        { return t.tenantID }
func (t *TaskTemplate) Family() string          { return t.family }
func (t *TaskTemplate) DefinitionID() string    { return t.definitionID }
func (t *TaskTemplate) HostPorts() HostPortMode { return t.hostPorts }
func (t *TaskTemplate) Adapter() ContainerSpec  { return t.adapter.clone() }
func (t *TaskTemplate) BFF() ContainerSpec      { return t.bff.clone() }

// Containers returns both containers in declaration order (adapter, bff).
// Use services.StartOrder for dependency order.
func (t *TaskTemplate) Containers() []ContainerSpec {
	return []ContainerSpec{t.adapter.clone(), t.bff.clone()}
}

// Container looks a container up by name.
func (t *TaskTemplate) Container(name string) (ContainerSpec, bool) {
	switch name {
	case t.adapter.Name:
		return t.adapter.clone(), true
	case t.bff.Name:
		return t.bff.clone(), true
	}
	return ContainerSpec{}, false
}
