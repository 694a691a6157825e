// Package docker implements interfaces.Cluster on a plain Docker Engine.
//
// Docker has no task definitions, security groups or managed services, so
// they map onto what it does have: a task template is a revisioned container
// pair kept by the platform, a network rule is a labelled user-defined
// network whose ingress ports are the only ones ever published, and a managed
// service is N replica pairs carrying ownership labels.
package docker

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ezenkico/deploy-commander/sidecar/models"
	"github.com/ezenkico/deploy-commander/sidecar/services/registry"

	"github.com/moby/moby/client"
)

// Labels stamped on every container and network the platform creates.
const (
	labelJob      = "deploy-commander.job"
	labelRun      = "deploy-commander.run"
	labelCluster  = "deploy-commander.cluster"
	labelNetwork  = "deploy-commander.network"
	labelKind     = "deploy-commander.kind"
	labelTenant   = "deploy-commander.tenant"
	labelService  = "deploy-commander.service"
	labelFamily   = "deploy-commander.family"
	labelRevision = "deploy-commander.revision"
	labelRole     = "deploy-commander.role"
	labelReplica  = "deploy-commander.replica"
	labelIngress  = "deploy-commander.ingress"
	labelGrace    = "deploy-commander.health-grace"
)

const (
	kindNetworkRule = "network-rule"
	kindTask        = "task"
)

// DockerPlatform implements interfaces.Cluster for plain Docker (Engine API).
type DockerPlatform struct {
	client   *client.Client
	handle   models.ClusterHandle
	job      uuid.UUID
	run      uuid.UUID
	registry *registry.Store
	logger   zerolog.Logger

	mu        sync.Mutex
	templates map[string]registeredTemplate // by family
}

type registeredTemplate struct {
	template *models.TaskTemplate
	revision int
}

// NewDockerPlatform initializes the Docker platform using environment variables
// (e.g. DOCKER_HOST) and API version negotiation.
func NewDockerPlatform(
	handle models.ClusterHandle,
	job uuid.UUID,
	run uuid.UUID,
	store *registry.Store,
	logger zerolog.Logger,
) (*DockerPlatform, error) {
	c, err := client.New(
		client.FromEnv,
	)
	if err != nil {
		return nil, err
	}

	if store == nil {
		store = registry.New(handle.Domain)
	}

	return &DockerPlatform{
		client:    c,
		handle:    handle,
		job:       job,
		run:       run,
		registry:  store,
		logger:    logger.With().Str("pkg", "docker").Str("cluster", handle.Name).Logger(),
		templates: make(map[string]registeredTemplate),
	}, nil
}

func (p *DockerPlatform) Name() string    { return p.handle.Name }
func (p *DockerPlatform) Network() string { return p.handle.Network }

// Close releases the Docker client.
func (p *DockerPlatform) Close() error { return p.client.Close() }

func (p *DockerPlatform) baseLabels(tenant string) map[string]string {
	return map[string]string{
		labelJob:     p.job.String(),
		labelRun:     p.run.String(),
		labelCluster: p.handle.Name,
		labelTenant:  tenant,
	}
}
