package interfaces

import (
	"context"

	"github.com/ezenkico/deploy-commander/sidecar/models"
)

// Cluster is the pre-existing orchestration cluster the composer appends to.
// Implementations must never touch resources whose names they did not derive
// from the arguments they were given.
type Cluster interface {
	Name() string
	// Network is the network context security boundaries are created in.
	Network() string

	RegisterTaskTemplate(ctx context.Context, template *models.TaskTemplate) (string, error)
	CreateNetworkRule(ctx context.Context, rule models.NetworkRule) (string, error)
	CreateService(ctx context.Context, service models.ManagedService, template *models.TaskTemplate, rule models.NetworkRule) (string, error)
	// RegisterService publishes entry and returns it with the resolved addresses.
	RegisterService(ctx context.Context, entry models.RegistryEntry) (models.RegistryEntry, error)

	Teardown(ctx context.Context, topology *models.ComposedTopology) error
}

// Listener is the pre-existing load balancer listener target groups hang off.
type Listener interface {
	Name() string
	AttachTargetGroup(ctx context.Context, rule models.RoutingRule) (string, error)
	// DetachTargetGroup removes rule's target group if it still routes to
	// rule.ServiceName; a group held by another service is left alone.
	DetachTargetGroup(ctx context.Context, rule models.RoutingRule) error
}
