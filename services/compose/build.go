package compose

import (
	"time"

	"github.com/ezenkico/deploy-commander/sidecar/models"
)

// Fixed topology settings; descriptors cannot change them.
const (
	HealthCheckGracePeriod = time.Minute
	RegistryTTL            = 60 * time.Second

	HealthCheckPath     = "/health"
	HealthCheckInterval = 15 * time.Second
	HealthCheckTimeout  = 10 * time.Second

	LogDriver = "json-file"
)

func portBinding(port uint16, mode models.HostPortMode) models.PortBinding {
	b := models.PortBinding{ContainerPort: port, Protocol: models.ProtocolTCP}
	if mode == models.HostPortsStatic {
		b.HostPort = port
	}
	return b
}

// BuildTaskTemplate assembles the adapter/bff pair. The adapter listens on the
// public adapter port and reaches the bff through the "bff" link; the bff
// listens on the internal bff port and knows nothing of the adapter.
func BuildTaskTemplate(prefix string, names models.Names, d models.ServiceDescriptor) *models.TaskTemplate {
	logs := models.LogConfig{Driver: LogDriver, StreamPrefix: prefix}

	bff := models.ContainerSpec{
		Name:         names.BFFContainer,
		Role:         models.RoleBFF,
		Image:        d.BffImage,
		CPUUnits:     d.CPUUnits,
		MemoryMiB:    d.MemoryMiB,
		PortBindings: []models.PortBinding{portBinding(d.BffPort, d.HostPorts)},
		LogConfig:    logs,
		Env: map[string]string{
			"NODE_ENV": d.RuntimeMode,
		},
	}

	adapter := models.ContainerSpec{
		Name:         names.AdapterContainer,
		Role:         models.RoleAdapter,
		Image:        d.AdapterImage,
		CPUUnits:     d.CPUUnits,
		MemoryMiB:    d.MemoryMiB,
		PortBindings: []models.PortBinding{portBinding(d.AdapterPort, d.HostPorts)},
		LogConfig:    logs,
		Links:        []models.Link{{Target: bff.Name, Alias: models.BffLinkAlias}},
		DependsOn:    []string{bff.Name},
	}

	return models.NewTaskTemplate(d.TenantID, names.Family, names.TaskDefinition, d.HostPorts, adapter, bff)
}

// BuildNetworkRule opens the adapter port to everyone and nothing else.
func BuildNetworkRule(names models.Names, d models.ServiceDescriptor, network string) models.NetworkRule {
	return models.NetworkRule{
		Name:             names.SecurityGroup,
		TenantID:         d.TenantID,
		Network:          network,
		AllowAllOutbound: true,
		Ingress: []models.IngressRule{{
			Port:     d.AdapterPort,
			Protocol: models.ProtocolTCP,
			Source:   models.AnyIPv4,
		}},
	}
}

func BuildManagedService(names models.Names, d models.ServiceDescriptor, cluster string) models.ManagedService {
	return models.ManagedService{
		Name:                   names.Service,
		TenantID:               d.TenantID,
		Cluster:                cluster,
		TaskFamily:             names.Family,
		NetworkRule:            names.SecurityGroup,
		ReplicaCount:           d.DesiredReplicas,
		HealthCheckGracePeriod: HealthCheckGracePeriod,
		AssignPublicIP:         false,
		DeploymentController:   models.DeploymentRolling,
	}
}

func BuildRegistryEntry(names models.Names, d models.ServiceDescriptor) models.RegistryEntry {
	return models.RegistryEntry{
		Name:        names.Registry,
		TenantID:    d.TenantID,
		ServiceName: names.Service,
		Network:     names.SecurityGroup,
		RecordType:  models.RecordTypeA,
		TTL:         RegistryTTL,
	}
}

func BuildRoutingRule(names models.Names, d models.ServiceDescriptor, listener string) models.RoutingRule {
	return models.RoutingRule{
		TargetGroupName: names.TargetGroup,
		Listener:        listener,
		ServiceName:     names.Service,
		TenantID:        d.TenantID,
		Protocol:        models.ProtocolHTTP,
		Port:            d.AdapterPort,
		HealthCheck: models.HealthCheck{
			Path:     HealthCheckPath,
			Interval: HealthCheckInterval,
			Timeout:  HealthCheckTimeout,
		},
	}
}
