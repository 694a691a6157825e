// Package memory provides in-process Cluster and Listener implementations for
// dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"github.com/ezenkico/deploy-commander/sidecar/models"
	"github.com/ezenkico/deploy-commander/sidecar/services/registry"
)

type templateRecord struct {
	template *models.TaskTemplate
	revision int
}

type serviceRecord struct {
	service   models.ManagedService
	revision  int
	addresses []netip.Addr
}

// Cluster keeps every resource in maps. Names owned by one tenant are
// rejected for another with a *models.NameCollisionError.
type Cluster struct {
	name     string
	network  string
	registry *registry.Store

	mu        sync.Mutex
	templates map[string]templateRecord // by family
	rules     map[string]models.NetworkRule
	services  map[string]serviceRecord
	failures  map[models.Stage]error
	nextAddr  netip.Addr
}

func NewCluster(name, network string, store *registry.Store) *Cluster {
	if store == nil {
		store = registry.New("")
	}
	return &Cluster{
		name:      name,
		network:   network,
		registry:  store,
		templates: make(map[string]templateRecord),
		rules:     make(map[string]models.NetworkRule),
		services:  make(map[string]serviceRecord),
		failures:  make(map[models.Stage]error),
		nextAddr:  netip.MustParseAddr("10.0.0.1"),
	}
}

func (c *Cluster) Name() string              { return c.name }
func (c *Cluster) Network() string           { return c.network }
func (c *Cluster) Registry() *registry.Store { return c.registry }

// FailOn makes the next call of stage return err.
func (c *Cluster) FailOn(stage models.Stage, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[stage] = err
}

func (c *Cluster) injected(stage models.Stage) error {
	err, ok := c.failures[stage]
	if ok {
		delete(c.failures, stage)
	}
	return err
}

func (c *Cluster) RegisterTaskTemplate(ctx context.Context, template *models.TaskTemplate) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.injected(models.StageTaskTemplate); err != nil {
		return "", err
	}

	rec, ok := c.templates[template.Family()]
	if ok && rec.template.TenantID() != template.TenantID() {
		return "", &models.NameCollisionError{Kind: "task-template", Name: template.Family(), Owner: rec.template.TenantID()}
	}

	rec = templateRecord{template: template, revision: rec.revision + 1}
	c.templates[template.Family()] = rec
	return fmt.Sprintf("%s:%d", template.Family(), rec.revision), nil
}

func (c *Cluster) CreateNetworkRule(ctx context.Context, rule models.NetworkRule) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.injected(models.StageNetworkRule); err != nil {
		return "", err
	}

	if existing, ok := c.rules[rule.Name]; ok && existing.TenantID != rule.TenantID {
		return "", &models.NameCollisionError{Kind: "network-rule", Name: rule.Name, Owner: existing.TenantID}
	}
	c.rules[rule.Name] = rule
	return rule.Name, nil
}

func (c *Cluster) CreateService(
	ctx context.Context,
	service models.ManagedService,
	template *models.TaskTemplate,
	rule models.NetworkRule,
) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.injected(models.StageManagedService); err != nil {
		return "", err
	}

	if existing, ok := c.services[service.Name]; ok && existing.service.TenantID != service.TenantID {
		return "", &models.NameCollisionError{Kind: "service", Name: service.Name, Owner: existing.service.TenantID}
	}
	tmpl, ok := c.templates[template.Family()]
	if !ok {
		return "", fmt.Errorf("task template %q is not registered", template.Family())
	}
	if _, ok := c.rules[rule.Name]; !ok {
		return "", fmt.Errorf("network rule %q does not exist", rule.Name)
	}

	// Redeploy swaps the revision under the same service identity.
	addrs := make([]netip.Addr, 0, service.ReplicaCount)
	for i := uint(0); i < service.ReplicaCount; i++ {
		addrs = append(addrs, c.nextAddr)
		c.nextAddr = c.nextAddr.Next()
	}
	c.services[service.Name] = serviceRecord{
		service:   service,
		revision:  tmpl.revision,
		addresses: addrs,
	}
	return service.Name, nil
}

func (c *Cluster) RegisterService(ctx context.Context, entry models.RegistryEntry) (models.RegistryEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.injected(models.StageRegistry); err != nil {
		return entry, err
	}

	svc, ok := c.services[entry.ServiceName]
	if !ok {
		return entry, fmt.Errorf("service %q does not exist", entry.ServiceName)
	}
	if existing, ok := c.registry.Lookup(c.registry.FQDN(entry.Name)); ok && existing.TenantID != entry.TenantID {
		return entry, &models.NameCollisionError{Kind: "registry-entry", Name: entry.Name, Owner: existing.TenantID}
	}

	entry.Addresses = svc.addresses
	return c.registry.Publish(entry)
}

func (c *Cluster) Teardown(ctx context.Context, topology *models.ComposedTopology) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.injected(models.StageTeardown); err != nil {
		return err
	}

	if existing, ok := c.registry.Lookup(c.registry.FQDN(topology.Registry.Name)); ok && existing.TenantID == topology.TenantID {
		c.registry.Remove(topology.Registry.Name)
	}
	if rec, ok := c.services[topology.Service.Name]; ok && rec.service.TenantID == topology.TenantID {
		delete(c.services, topology.Service.Name)
	}
	if rule, ok := c.rules[topology.Rule.Name]; ok && rule.TenantID == topology.TenantID {
		delete(c.rules, topology.Rule.Name)
	}
	if rec, ok := c.templates[topology.Names.Family]; ok && rec.template.TenantID() == topology.TenantID {
		delete(c.templates, topology.Names.Family)
	}
	return nil
}

// Template returns the registered template of family and its revision.
func (c *Cluster) Template(family string) (*models.TaskTemplate, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.templates[family]
	return rec.template, rec.revision, ok
}

func (c *Cluster) Rule(name string) (models.NetworkRule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rules[name]
	return r, ok
}

func (c *Cluster) Service(name string) (models.ManagedService, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.services[name]
	return rec.service, ok
}

// Len counts every resource the cluster holds.
func (c *Cluster) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.templates) + len(c.rules) + len(c.services) + len(c.registry.Names())
}
