package models

type ImageRef string

type HostPortMode string

const (
	HostPortsStatic    HostPortMode = "static"    // host port == container port
	HostPortsEphemeral HostPortMode = "ephemeral" // platform picks the host port
	HostPortsNone      HostPortMode = "none"      // nothing bound on the host
)

const (
	DefaultCPUUnits    = 256
	DefaultMemoryMiB   = 512
	DefaultRuntimeMode = "production"
)

// ServiceDescriptor is the per-tenant input to the composer.
type ServiceDescriptor struct {
	// Required
	TenantID     string   `json:"tenant_id"`
	AdapterImage ImageRef `json:"adapter_image"`
	BffImage     ImageRef `json:"bff_image"`

	// Public gateway port and internal bff port
	AdapterPort uint16 `json:"adapter_port"`
	BffPort     uint16 `json:"bff_port"`

	DesiredReplicas uint `json:"desired_replicas"`

	// Per container sizing; zero means default
	CPUUnits  uint `json:"cpu_units,omitempty"`
	MemoryMiB uint `json:"memory_mib,omitempty"`

	// Exported to the bff as NODE_ENV
	RuntimeMode string `json:"runtime_mode,omitempty"`

	HostPorts HostPortMode `json:"host_ports,omitempty"`
}

// WithDefaults returns a copy of d with optional fields filled in.
func (d ServiceDescriptor) WithDefaults() ServiceDescriptor {
	if d.CPUUnits == 0 {
		d.CPUUnits = DefaultCPUUnits
	}
	if d.MemoryMiB == 0 {
		d.MemoryMiB = DefaultMemoryMiB
	}
	if d.RuntimeMode == "" {
		d.RuntimeMode = DefaultRuntimeMode
	}
	if d.HostPorts == "" {
		d.HostPorts = HostPortsStatic
	}
	return d
}
