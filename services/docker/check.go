package docker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/containerd/errdefs"

	"github.com/ezenkico/deploy-commander/sidecar/models"

	"github.com/moby/moby/client"
)

// checkOwner fails when labels show the resource belongs to another tenant.
// Resources without a tenant label were not created by us and count as taken.
func checkOwner(kind, name, tenant string, labels map[string]string) error {
	owner, ok := labels[labelTenant]
	if !ok || owner != tenant {
		return &models.NameCollisionError{Kind: kind, Name: name, Owner: owner}
	}
	return nil
}

// familyRevision checks the family's running containers belong to tenant and
// returns the highest revision they run.
func (p *DockerPlatform) familyRevision(ctx context.Context, family, tenant string) (int, error) {
	f := make(client.Filters).
		Add("label", labelFamily+"="+family)

	containers, err := p.client.ContainerList(ctx, client.ContainerListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return 0, fmt.Errorf("list family containers (family=%s): %w", family, err)
	}

	revision := 0
	for _, c := range containers.Items {
		if err := checkOwner("task-template", family, tenant, c.Labels); err != nil {
			return 0, err
		}
		if r, err := strconv.Atoi(c.Labels[labelRevision]); err == nil && r > revision {
			revision = r
		}
	}
	return revision, nil
}

// checkContainerNames makes sure none of names is held by a container of
// another tenant.
func (p *DockerPlatform) checkContainerNames(ctx context.Context, tenant string, names []string) error {
	for _, name := range names {
		inspect, err := p.client.ContainerInspect(ctx, name, client.ContainerInspectOptions{})
		if err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("inspect container %q: %w", name, err)
		}

		var labels map[string]string
		if inspect.Container.Config != nil {
			labels = inspect.Container.Config.Labels
		}
		if err := checkOwner("container", name, tenant, labels); err != nil {
			return err
		}
	}
	return nil
}

// checkHostPortOwner fails when a container outside service holds a host
// port the service wants to bind statically.
func checkHostPortOwner(port, tenant, service string, labels map[string]string) error {
	if labels[labelTenant] == tenant && labels[labelService] == service {
		return nil
	}
	owner := labels[labelService]
	if owner == "" {
		owner = labels[labelTenant]
	}
	return &models.NameCollisionError{Kind: "host-port", Name: port, Owner: owner}
}

// checkHostPorts makes sure the static host ports of the service are free or
// held by the service's own previous containers.
func (p *DockerPlatform) checkHostPorts(
	ctx context.Context,
	service models.ManagedService,
	specs []models.ContainerSpec,
	mode models.HostPortMode,
	rule models.NetworkRule,
) error {
	mode = effectiveHostPorts(mode, service.ReplicaCount)

	for _, spec := range specs {
		for _, b := range publishedPorts(spec, mode, rule) {
			port := fmt.Sprintf("%d/%s", b.HostPort, b.Protocol)
			f := make(client.Filters).
				Add("publish", port)

			containers, err := p.client.ContainerList(ctx, client.ContainerListOptions{
				Filters: f,
			})
			if err != nil {
				return fmt.Errorf("list containers publishing %s: %w", port, err)
			}
			for _, c := range containers.Items {
				if err := checkHostPortOwner(port, service.TenantID, service.Name, c.Labels); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
