// Package compose turns a ServiceDescriptor into a running, routable and
// discoverable sidecar service on a pre-existing cluster and listener.
package compose

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ezenkico/deploy-commander/sidecar/interfaces"
	"github.com/ezenkico/deploy-commander/sidecar/models"
	"github.com/ezenkico/deploy-commander/sidecar/services"
)

type Composer struct {
	prefix string
	logger zerolog.Logger
}

// New returns a composer deriving names under prefix ("" means services.DefaultPrefix).
func New(prefix string, logger zerolog.Logger) *Composer {
	if prefix == "" {
		prefix = services.DefaultPrefix
	}
	return &Composer{
		prefix: prefix,
		logger: logger.With().Str("pkg", "compose").Logger(),
	}
}

func (c *Composer) Prefix() string { return c.prefix }

// Plan validates d and builds every resource of its topology without
// touching the cluster or listener.
func (c *Composer) Plan(d models.ServiceDescriptor, cluster interfaces.Cluster, listener interfaces.Listener) (*models.ComposedTopology, error) {
	if err := services.ValidateDescriptor(c.prefix, d); err != nil {
		return nil, err
	}
	d = d.WithDefaults()

	names := services.DeriveNames(c.prefix, d.TenantID)
	template := BuildTaskTemplate(c.prefix, names, d)
	if _, err := services.StartOrder(template); err != nil {
		return nil, &models.InvalidDescriptorError{Field: "containers", Reason: err.Error()}
	}

	return &models.ComposedTopology{
		ID:       uuid.New(),
		TenantID: d.TenantID,
		Names:    names,
		Template: template,
		Rule:     BuildNetworkRule(names, d, cluster.Network()),
		Service:  BuildManagedService(names, d, cluster.Name()),
		Registry: BuildRegistryEntry(names, d),
		Route:    BuildRoutingRule(names, d, listener.Name()),
	}, nil
}

// Compose provisions d's topology in dependency order: task template, network
// rule, managed service, registry entry, routing rule. The first failing step
// is returned as a *models.ProvisioningError; earlier steps are not rolled back.
func (c *Composer) Compose(
	ctx context.Context,
	d models.ServiceDescriptor,
	cluster interfaces.Cluster,
	listener interfaces.Listener,
) (*models.ComposedTopology, error) {

	topology, err := c.Plan(d, cluster, listener)
	if err != nil {
		c.logger.Warn().Err(err).Str("tenant", d.TenantID).Msg("descriptor rejected")
		return nil, err
	}

	log := c.logger.With().
		Str("tenant", topology.TenantID).
		Str("topology", topology.ID.String()).
		Logger()

	fail := func(stage models.Stage, err error) (*models.ComposedTopology, error) {
		log.Error().Err(err).Str("stage", string(stage)).Msg("provisioning failed")
		return nil, &models.ProvisioningError{Stage: stage, Cause: err}
	}
	done := func(stage models.Stage, id string) {
		log.Info().Str("stage", string(stage)).Str("id", id).Msg("provisioned")
	}

	// 1) Task template
	id, err := cluster.RegisterTaskTemplate(ctx, topology.Template)
	if err != nil {
		return fail(models.StageTaskTemplate, err)
	}
	topology.IDs.TaskTemplate = id
	done(models.StageTaskTemplate, id)

	// 2) Security boundary
	id, err = cluster.CreateNetworkRule(ctx, topology.Rule)
	if err != nil {
		return fail(models.StageNetworkRule, err)
	}
	topology.IDs.NetworkRule = id
	done(models.StageNetworkRule, id)

	// 3) Managed service
	id, err = cluster.CreateService(ctx, topology.Service, topology.Template, topology.Rule)
	if err != nil {
		return fail(models.StageManagedService, err)
	}
	topology.IDs.ManagedService = id
	done(models.StageManagedService, id)

	// 4) Registry
	entry, err := cluster.RegisterService(ctx, topology.Registry)
	if err != nil {
		return fail(models.StageRegistry, err)
	}
	topology.Registry = entry
	topology.IDs.RegistryEntry = entry.Name
	if entry.FQDN != "" {
		topology.IDs.RegistryEntry = entry.FQDN
	}
	done(models.StageRegistry, topology.IDs.RegistryEntry)

	// 5) Listener routing
	id, err = listener.AttachTargetGroup(ctx, topology.Route)
	if err != nil {
		return fail(models.StageRoutingRule, err)
	}
	topology.IDs.RoutingRule = id
	done(models.StageRoutingRule, id)

	return topology, nil
}

// Teardown removes d's topology, routing first so the listener stops sending
// traffic before the service goes away. Names are derived, so no state from
// an earlier Compose call is needed.
func (c *Composer) Teardown(
	ctx context.Context,
	d models.ServiceDescriptor,
	cluster interfaces.Cluster,
	listener interfaces.Listener,
) error {

	topology, err := c.Plan(d, cluster, listener)
	if err != nil {
		return err
	}

	log := c.logger.With().Str("tenant", topology.TenantID).Logger()

	if err := listener.DetachTargetGroup(ctx, topology.Route); err != nil {
		log.Error().Err(err).Str("name", topology.Route.TargetGroupName).Msg("detach target group failed")
		return &models.ProvisioningError{Stage: models.StageTeardown, Cause: err}
	}
	if err := cluster.Teardown(ctx, topology); err != nil {
		log.Error().Err(err).Str("name", topology.Service.Name).Msg("cluster teardown failed")
		return &models.ProvisioningError{Stage: models.StageTeardown, Cause: err}
	}

	log.Info().Str("name", topology.Service.Name).Msg("torn down")
	return nil
}
