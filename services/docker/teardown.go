package docker

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"

	"github.com/ezenkico/deploy-commander/sidecar/models"

	"github.com/moby/moby/client"
)

// Teardown removes the topology's containers, network, registry entry and
// template, skipping anything that belongs to another tenant.
func (p *DockerPlatform) Teardown(ctx context.Context, topology *models.ComposedTopology) error {
	if existing, ok := p.registry.Lookup(p.registry.FQDN(topology.Registry.Name)); ok && existing.TenantID == topology.TenantID {
		p.registry.Remove(topology.Registry.Name)
	}

	if err := p.removeServiceContainers(ctx, topology.Service.Name, topology.TenantID); err != nil {
		return err
	}

	if err := p.tearDownNetwork(ctx, topology.Rule); err != nil {
		return err
	}

	p.mu.Lock()
	if t, ok := p.templates[topology.Names.Family]; ok && t.template.TenantID() == topology.TenantID {
		delete(p.templates, topology.Names.Family)
	}
	p.mu.Unlock()

	p.logger.Info().Str("tenant", topology.TenantID).Str("name", topology.Service.Name).Msg("service removed")
	return nil
}

func (p *DockerPlatform) tearDownNetwork(ctx context.Context, rule models.NetworkRule) error {
	n, err := p.findNetwork(ctx, rule.Name)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	if n.Labels[labelTenant] != rule.TenantID {
		p.logger.Warn().Str("name", rule.Name).Str("owner", n.Labels[labelTenant]).Msg("network not owned by tenant, leaving it")
		return nil
	}

	// Prefer removing by ID to avoid name collisions.
	if _, err := p.client.NetworkRemove(ctx, n.ID, client.NetworkRemoveOptions{}); err != nil {
		// Idempotent: if it vanished, ignore.
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove network %q (%s): %w", rule.Name, n.ID, err)
	}
	return nil
}
