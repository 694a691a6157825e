package docker

import (
	"context"
	"fmt"
	"net/netip"
	"slices"

	"github.com/ezenkico/deploy-commander/sidecar/models"

	"github.com/moby/moby/client"
)

// RegisterService publishes the tenant-network addresses of the service's
// adapter containers under the entry name.
func (p *DockerPlatform) RegisterService(ctx context.Context, entry models.RegistryEntry) (models.RegistryEntry, error) {
	if existing, ok := p.registry.Lookup(p.registry.FQDN(entry.Name)); ok && existing.TenantID != entry.TenantID {
		return entry, &models.NameCollisionError{Kind: "registry-entry", Name: entry.Name, Owner: existing.TenantID}
	}

	addrs, err := p.serviceAddresses(ctx, entry.ServiceName, entry.TenantID, entry.Network)
	if err != nil {
		return entry, err
	}
	entry.Addresses = addrs

	return p.registry.Publish(entry)
}

func (p *DockerPlatform) serviceAddresses(ctx context.Context, service, tenant, netName string) ([]netip.Addr, error) {
	f := make(client.Filters).
		Add("label", labelService+"="+service).
		Add("label", labelTenant+"="+tenant).
		Add("label", labelRole+"="+string(models.RoleAdapter))

	containers, err := p.client.ContainerList(ctx, client.ContainerListOptions{
		Filters: f,
	})
	if err != nil {
		return nil, fmt.Errorf("list service containers (service=%s): %w", service, err)
	}

	addrs := make([]netip.Addr, 0, len(containers.Items))
	for _, c := range containers.Items {
		if c.NetworkSettings == nil {
			continue
		}
		ep, ok := c.NetworkSettings.Networks[netName]
		if !ok || ep == nil || !ep.IPAddress.IsValid() {
			continue
		}
		addrs = append(addrs, ep.IPAddress)
	}
	slices.SortFunc(addrs, func(a, b netip.Addr) int { return a.Compare(b) })
	return addrs, nil
}

// RefreshRegistry re-reads the adapter addresses of every published entry.
// Restarted replicas may come back with new addresses on the tenant network.
func (p *DockerPlatform) RefreshRegistry(ctx context.Context) error {
	for _, fqdn := range p.registry.Names() {
		entry, ok := p.registry.Lookup(fqdn)
		if !ok {
			continue
		}
		addrs, err := p.serviceAddresses(ctx, entry.ServiceName, entry.TenantID, entry.Network)
		if err != nil {
			return err
		}
		if slices.Equal(addrs, entry.Addresses) {
			continue
		}
		entry.Addresses = addrs
		if _, err := p.registry.Publish(entry); err != nil {
			return err
		}
		p.logger.Debug().Str("name", entry.Name).Int("addresses", len(addrs)).Msg("registry entry refreshed")
	}
	return nil
}
