package docker

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/containerd/errdefs"

	"github.com/ezenkico/deploy-commander/sidecar/models"
	"github.com/ezenkico/deploy-commander/sidecar/services"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"
)

// RegisterTaskTemplate records a new revision of the template's family.
func (p *DockerPlatform) RegisterTaskTemplate(ctx context.Context, template *models.TaskTemplate) (string, error) {
	running, err := p.familyRevision(ctx, template.Family(), template.TenantID())
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prev, ok := p.templates[template.Family()]
	if ok && prev.template.TenantID() != template.TenantID() {
		return "", &models.NameCollisionError{Kind: "task-template", Name: template.Family(), Owner: prev.template.TenantID()}
	}

	revision := max(running, prev.revision) + 1
	p.templates[template.Family()] = registeredTemplate{template: template, revision: revision}

	return fmt.Sprintf("%s:%d", template.Family(), revision), nil
}

func (p *DockerPlatform) templateRevision(family string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.templates[family]
	return t.revision, ok
}

func (p *DockerPlatform) findNetwork(ctx context.Context, name string) (*network.Summary, error) {
	f := make(client.Filters).
		Add("name", name)

	nets, err := p.client.NetworkList(ctx, client.NetworkListOptions{
		Filters: f,
	})
	if err != nil {
		return nil, fmt.Errorf("list networks (name=%s): %w", name, err)
	}

	// The name filter matches substrings.
	for i := range nets.Items {
		if nets.Items[i].Name == name {
			return &nets.Items[i], nil
		}
	}
	return nil, nil
}

func ingressLabel(rule models.NetworkRule) string {
	ports := make([]string, 0, len(rule.Ingress))
	for _, in := range rule.Ingress {
		ports = append(ports, fmt.Sprintf("%d/%s", in.Port, in.Protocol))
	}
	sort.Strings(ports)
	return strings.Join(ports, ",")
}

// networkLabels are the ownership labels of a rule's network.
func (p *DockerPlatform) networkLabels(rule models.NetworkRule) map[string]string {
	labels := p.baseLabels(rule.TenantID)
	labels[labelKind] = kindNetworkRule
	labels[labelIngress] = ingressLabel(rule)
	if rule.Network != "" {
		labels[labelNetwork] = rule.Network
	}
	return labels
}

// CreateNetworkRule creates (or reuses) the tenant network named after the rule.
func (p *DockerPlatform) CreateNetworkRule(ctx context.Context, rule models.NetworkRule) (string, error) {
	existing, err := p.findNetwork(ctx, rule.Name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if err := checkOwner("network", rule.Name, rule.TenantID, existing.Labels); err != nil {
			return "", err
		}
		return rule.Name, nil
	}

	labels := p.networkLabels(rule)

	_, err = p.client.NetworkCreate(ctx, rule.Name, client.NetworkCreateOptions{
		Labels:   labels,
		Internal: !rule.AllowAllOutbound,
	})
	if err != nil {
		// Race-safe: re-check
		if again, ie := p.findNetwork(ctx, rule.Name); ie != nil || again == nil {
			return "", fmt.Errorf("create network %q: %w", rule.Name, err)
		}
	}

	p.logger.Debug().Str("name", rule.Name).Str("ingress", labels[labelIngress]).Msg("network created")
	return rule.Name, nil
}

// CreateService replaces whatever runs under the service name with
// service.ReplicaCount copies of the template.
func (p *DockerPlatform) CreateService(
	ctx context.Context,
	service models.ManagedService,
	template *models.TaskTemplate,
	rule models.NetworkRule,
) (string, error) {

	revision, ok := p.templateRevision(template.Family())
	if !ok {
		return "", fmt.Errorf("task template %q is not registered", template.Family())
	}

	order, err := services.StartOrder(template)
	if err != nil {
		return "", err
	}

	// 1) Names must be ours
	names := make([]string, 0, len(order)*int(service.ReplicaCount))
	for i := 0; i < int(service.ReplicaCount); i++ {
		for _, spec := range order {
			names = append(names, services.ReplicaName(spec.Name, i))
		}
	}
	if err := p.checkContainerNames(ctx, service.TenantID, names); err != nil {
		return "", err
	}
	if err := p.checkHostPorts(ctx, service, order, template.HostPorts(), rule); err != nil {
		return "", err
	}

	// 2) Drop the previous revision
	if err := p.removeServiceContainers(ctx, service.Name, service.TenantID); err != nil {
		return "", err
	}

	// 3) Create replicas, dependencies first
	for i := 0; i < int(service.ReplicaCount); i++ {
		for _, spec := range order {
			labels := p.baseLabels(service.TenantID)
			labels[labelKind] = kindTask
			labels[labelService] = service.Name
			labels[labelFamily] = template.Family()
			labels[labelRevision] = strconv.Itoa(revision)
			labels[labelRole] = string(spec.Role)
			labels[labelReplica] = strconv.Itoa(i)
			labels[labelGrace] = service.HealthCheckGracePeriod.String()

			cCfg, hCfg, nCfg, err := containerConfigs(spec, i, template.HostPorts(), service, rule, labels)
			if err != nil {
				return "", err
			}

			name := services.ReplicaName(spec.Name, i)
			created, err := p.client.ContainerCreate(ctx, client.ContainerCreateOptions{
				Config:           cCfg,
				HostConfig:       hCfg,
				NetworkingConfig: nCfg,
				Name:             name,
				Image:            cCfg.Image,
			})
			if err != nil {
				return "", fmt.Errorf("create container %q: %w", name, err)
			}

			if _, err := p.client.ContainerStart(ctx, created.ID, client.ContainerStartOptions{}); err != nil {
				return "", fmt.Errorf("start container %q: %w", name, err)
			}
		}
	}

	p.logger.Info().
		Str("name", service.Name).
		Uint("replicas", service.ReplicaCount).
		Int("revision", revision).
		Msg("service deployed")

	return service.Name, nil
}

// effectiveHostPorts is the host port mode the Engine can honour. All
// replicas share one host, so a static host port only fits a single replica.
func effectiveHostPorts(mode models.HostPortMode, replicas uint) models.HostPortMode {
	if mode == models.HostPortsStatic && replicas > 1 {
		return models.HostPortsEphemeral
	}
	return mode
}

// publishedPorts lists the static host ports spec binds under mode.
func publishedPorts(spec models.ContainerSpec, mode models.HostPortMode, rule models.NetworkRule) []models.PortBinding {
	if mode != models.HostPortsStatic {
		return nil
	}
	var out []models.PortBinding
	for _, b := range spec.PortBindings {
		if rule.Allows(b.ContainerPort, b.Protocol) {
			out = append(out, b)
		}
	}
	return out
}

// containerConfigs builds the Engine configs of replica i of spec. Only ports
// the network rule admits are published; the rest stay reachable on the
// tenant network alone.
func containerConfigs(
	spec models.ContainerSpec,
	replica int,
	mode models.HostPortMode,
	service models.ManagedService,
	rule models.NetworkRule,
	labels map[string]string,
) (*container.Config, *container.HostConfig, *network.NetworkingConfig, error) {

	mode = effectiveHostPorts(mode, service.ReplicaCount)

	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(env)

	exposed := network.PortSet{}
	portMap := network.PortMap{}

	for _, b := range spec.PortBindings {
		port, ok := network.PortFrom(b.ContainerPort, network.IPProtocol(b.Protocol))
		if !ok {
			return nil, nil, nil, fmt.Errorf("container %q has invalid port %d/%s", spec.Name, b.ContainerPort, b.Protocol)
		}
		exposed[port] = struct{}{}

		if mode == models.HostPortsNone || !rule.Allows(b.ContainerPort, b.Protocol) {
			continue
		}

		hostPort := "" // ephemeral
		if mode == models.HostPortsStatic {
			hostPort = strconv.Itoa(int(b.HostPort))
		}
		portMap[port] = append(portMap[port], network.PortBinding{
			HostIP:   netip.IPv4Unspecified(),
			HostPort: hostPort,
		})
	}

	cCfg := &container.Config{
		Image:        string(spec.Image),
		Env:          env,
		Labels:       labels,
		ExposedPorts: exposed,
	}

	logOpts := map[string]string{
		"tag": fmt.Sprintf("%s/%s/%s", spec.LogConfig.StreamPrefix, spec.Name, "{{.ID}}"),
	}

	hCfg := &container.HostConfig{
		PortBindings: portMap,
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyAlways,
		},
		LogConfig: container.LogConfig{
			Type:   spec.LogConfig.Driver,
			Config: logOpts,
		},
		Resources: container.Resources{
			// 1024 cpu units per core
			NanoCPUs: int64(spec.CPUUnits) * 1_000_000_000 / 1024,
			Memory:   int64(spec.MemoryMiB) << 20,
		},
	}

	es := &network.EndpointSettings{}
	for _, l := range spec.Links {
		es.Links = append(es.Links, fmt.Sprintf("%s:%s", services.ReplicaName(l.Target, replica), l.Alias))
	}
	// The adapter answers for the service name on the tenant network.
	if spec.Role == models.RoleAdapter {
		es.Aliases = []string{service.Name}
	}

	nCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			rule.Name: es,
		},
	}

	return cCfg, hCfg, nCfg, nil
}

// removeServiceContainers stops and removes every container of the service.
func (p *DockerPlatform) removeServiceContainers(ctx context.Context, service, tenant string) error {
	f := make(client.Filters).
		Add("label", labelService+"="+service).
		Add("label", labelTenant+"="+tenant)

	containers, err := p.client.ContainerList(ctx, client.ContainerListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return fmt.Errorf("list service containers (service=%s): %w", service, err)
	}

	for _, c := range containers.Items {
		// Stop (best-effort) then remove
		_, _ = p.client.ContainerStop(ctx, c.ID, client.ContainerStopOptions{})
		_, err = p.client.ContainerRemove(ctx, c.ID, client.ContainerRemoveOptions{
			Force:         true,
			RemoveVolumes: false,
		})
		if err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("remove container %q: %w", c.ID, err)
		}
	}

	return nil
}
