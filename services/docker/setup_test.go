package docker

import (
	"fmt"
	"testing"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezenkico/deploy-commander/sidecar/models"
)

func tcpPort(t *testing.T, n uint16) network.Port {
	t.Helper()
	p, ok := network.PortFrom(n, network.IPProtocol("tcp"))
	require.True(t, ok)
	return p
}

func fixtures() (adapter, bff models.ContainerSpec, svc models.ManagedService, rule models.NetworkRule) {
	logs := models.LogConfig{Driver: "json-file", StreamPrefix: "poc"}

	bff = models.ContainerSpec{
		Name:         "poc-abc-bff-container",
		Role:         models.RoleBFF,
		Image:        "acme/abc-bff:latest",
		CPUUnits:     256,
		MemoryMiB:    512,
		PortBindings: []models.PortBinding{{ContainerPort: 3000, HostPort: 3000, Protocol: models.ProtocolTCP}},
		LogConfig:    logs,
		Env:          map[string]string{"NODE_ENV": "production"},
	}
	adapter = models.ContainerSpec{
		Name:         "poc-abc-nrpc-container",
		Role:         models.RoleAdapter,
		Image:        "ghcr.io/acme/nrpc-gateway:1.4.0",
		CPUUnits:     256,
		MemoryMiB:    512,
		PortBindings: []models.PortBinding{{ContainerPort: 80, HostPort: 80, Protocol: models.ProtocolTCP}},
		LogConfig:    logs,
		Links:        []models.Link{{Target: bff.Name, Alias: models.BffLinkAlias}},
		DependsOn:    []string{bff.Name},
	}
	svc = models.ManagedService{
		Name:                   "poc-abc-bff-service",
		TenantID:               "abc",
		ReplicaCount:           3,
		HealthCheckGracePeriod: time.Minute,
	}
	rule = models.NetworkRule{
		Name:     "poc-abc-bff-service-sg",
		TenantID: "abc",
		Ingress:  []models.IngressRule{{Port: 80, Protocol: models.ProtocolTCP, Source: models.AnyIPv4}},
	}
	return adapter, bff, svc, rule
}

func TestContainerConfigs_Adapter(t *testing.T) {
	adapter, _, svc, rule := fixtures()
	svc.ReplicaCount = 1
	labels := map[string]string{labelTenant: "abc"}

	cCfg, hCfg, nCfg, err := containerConfigs(adapter, 2, models.HostPortsStatic, svc, rule, labels)
	require.NoError(t, err)

	assert.Equal(t, "ghcr.io/acme/nrpc-gateway:1.4.0", cCfg.Image)
	assert.Equal(t, labels, cCfg.Labels)
	assert.Contains(t, cCfg.ExposedPorts, tcpPort(t, 80))

	bindings := hCfg.PortBindings[tcpPort(t, 80)]
	require.Len(t, bindings, 1)
	assert.Equal(t, "80", bindings[0].HostPort)

	assert.Equal(t, container.RestartPolicyAlways, hCfg.RestartPolicy.Name)
	assert.Equal(t, "json-file", hCfg.LogConfig.Type)
	assert.Equal(t, int64(250_000_000), hCfg.Resources.NanoCPUs)
	assert.Equal(t, int64(512<<20), hCfg.Resources.Memory)

	es, ok := nCfg.EndpointsConfig["poc-abc-bff-service-sg"]
	require.True(t, ok)
	assert.Equal(t, []string{"poc-abc-bff-container-2:bff"}, es.Links)
	assert.Equal(t, []string{"poc-abc-bff-service"}, es.Aliases)
}

func TestContainerConfigs_BffStaysPrivate(t *testing.T) {
	_, bff, svc, rule := fixtures()

	cCfg, hCfg, nCfg, err := containerConfigs(bff, 0, models.HostPortsStatic, svc, rule, nil)
	require.NoError(t, err)

	// Exposed on the tenant network, never published on the host.
	assert.Contains(t, cCfg.ExposedPorts, tcpPort(t, 3000))
	assert.Empty(t, hCfg.PortBindings)
	assert.Equal(t, []string{"NODE_ENV=production"}, cCfg.Env)

	es := nCfg.EndpointsConfig["poc-abc-bff-service-sg"]
	require.NotNil(t, es)
	assert.Empty(t, es.Links)
	assert.Empty(t, es.Aliases)
}

func TestContainerConfigs_HostPortModes(t *testing.T) {
	adapter, _, svc, rule := fixtures()

	_, hCfg, _, err := containerConfigs(adapter, 0, models.HostPortsEphemeral, svc, rule, nil)
	require.NoError(t, err)
	bindings := hCfg.PortBindings[tcpPort(t, 80)]
	require.Len(t, bindings, 1)
	assert.Empty(t, bindings[0].HostPort)

	_, hCfg, _, err = containerConfigs(adapter, 0, models.HostPortsNone, svc, rule, nil)
	require.NoError(t, err)
	assert.Empty(t, hCfg.PortBindings)
}

func TestCheckOwner(t *testing.T) {
	assert.NoError(t, checkOwner("network", "sg", "abc", map[string]string{labelTenant: "abc"}))

	err := checkOwner("network", "sg", "abc", map[string]string{labelTenant: "xyz"})
	var nc *models.NameCollisionError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, "xyz", nc.Owner)

	// Unlabelled resources are not ours.
	assert.True(t, models.IsNameCollision(checkOwner("container", "c", "abc", nil)))
}

func TestIngressLabel(t *testing.T) {
	rule := models.NetworkRule{Ingress: []models.IngressRule{
		{Port: 8080, Protocol: models.ProtocolTCP},
		{Port: 443, Protocol: models.ProtocolTCP},
	}}
	assert.Equal(t, "443/tcp,8080/tcp", ingressLabel(rule))
}

func hostBindings(hCfg *container.HostConfig) []string {
	var out []string
	for port, bindings := range hCfg.PortBindings {
		for _, b := range bindings {
			out = append(out, fmt.Sprintf("%s:%s->%v", b.HostIP, b.HostPort, port))
		}
	}
	return out
}

func TestContainerConfigs_Replicas(t *testing.T) {
	adapter, bff, svc, rule := fixtures()

	tests := []struct {
		name      string
		mode      models.HostPortMode
		replicas  uint
		wantHosts []string // host port of the adapter per replica
	}{
		{"static single replica", models.HostPortsStatic, 1, []string{"80"}},
		{"static three replicas", models.HostPortsStatic, 3, []string{"", "", ""}},
		{"ephemeral three replicas", models.HostPortsEphemeral, 3, []string{"", "", ""}},
		{"none", models.HostPortsNone, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := svc
			svc.ReplicaCount = tt.replicas

			var hosts []string
			fixed := map[string]int{}
			for i := 0; i < int(tt.replicas); i++ {
				_, hCfg, nCfg, err := containerConfigs(adapter, i, tt.mode, svc, rule, nil)
				require.NoError(t, err)

				// Every replica talks to its own bff.
				es := nCfg.EndpointsConfig[rule.Name]
				require.NotNil(t, es)
				assert.Equal(t, []string{fmt.Sprintf("poc-abc-bff-container-%d:bff", i)}, es.Links)

				for _, b := range hCfg.PortBindings[tcpPort(t, 80)] {
					hosts = append(hosts, b.HostPort)
					if b.HostPort == "" {
						continue
					}
					key := b.HostIP.String() + ":" + b.HostPort
					prev, dup := fixed[key]
					assert.Falsef(t, dup, "replicas %d and %d both bind %s", prev, i, key)
					fixed[key] = i
				}

				_, bffHost, _, err := containerConfigs(bff, i, tt.mode, svc, rule, nil)
				require.NoError(t, err)
				assert.Empty(t, hostBindings(bffHost))
			}
			assert.Equal(t, tt.wantHosts, hosts)
		})
	}
}

func TestContainerConfigs_TwoTenantsSamePort(t *testing.T) {
	abcAdapter, _, abcSvc, abcRule := fixtures()

	xyzAdapter := abcAdapter
	xyzAdapter.Name = "poc-xyz-nrpc-container"
	xyzAdapter.Links = []models.Link{{Target: "poc-xyz-bff-container", Alias: models.BffLinkAlias}}
	xyzSvc := abcSvc
	xyzSvc.Name, xyzSvc.TenantID = "poc-xyz-bff-service", "xyz"
	xyzRule := abcRule
	xyzRule.Name, xyzRule.TenantID = "poc-xyz-bff-service-sg", "xyz"

	for i := 0; i < int(abcSvc.ReplicaCount); i++ {
		_, _, abcNet, err := containerConfigs(abcAdapter, i, models.HostPortsStatic, abcSvc, abcRule, nil)
		require.NoError(t, err)
		_, _, xyzNet, err := containerConfigs(xyzAdapter, i, models.HostPortsStatic, xyzSvc, xyzRule, nil)
		require.NoError(t, err)

		// Separate networks, aliases and bff links per tenant.
		require.Contains(t, abcNet.EndpointsConfig, "poc-abc-bff-service-sg")
		require.Contains(t, xyzNet.EndpointsConfig, "poc-xyz-bff-service-sg")
		assert.NotContains(t, xyzNet.EndpointsConfig, "poc-abc-bff-service-sg")
		assert.Equal(t, []string{"poc-xyz-bff-service"}, xyzNet.EndpointsConfig["poc-xyz-bff-service-sg"].Aliases)
		assert.Equal(t, []string{fmt.Sprintf("poc-xyz-bff-container-%d:bff", i)}, xyzNet.EndpointsConfig["poc-xyz-bff-service-sg"].Links)
	}

	// A single-replica tenant binding the static port another tenant holds
	// is refused before anything is created.
	abcLabels := map[string]string{labelTenant: "abc", labelService: "poc-abc-bff-service"}
	err := checkHostPortOwner("80/tcp", "xyz", "poc-xyz-bff-service", abcLabels)
	var nc *models.NameCollisionError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, "host-port", nc.Kind)
	assert.Equal(t, "poc-abc-bff-service", nc.Owner)

	// The service's own previous containers do not count.
	assert.NoError(t, checkHostPortOwner("80/tcp", "abc", "poc-abc-bff-service", abcLabels))
	// Containers we did not create hold the port too.
	assert.True(t, models.IsNameCollision(checkHostPortOwner("80/tcp", "abc", "poc-abc-bff-service", nil)))
}

func TestPublishedPorts(t *testing.T) {
	adapter, bff, _, rule := fixtures()

	assert.Equal(t, adapter.PortBindings, publishedPorts(adapter, models.HostPortsStatic, rule))
	assert.Empty(t, publishedPorts(bff, models.HostPortsStatic, rule))
	assert.Empty(t, publishedPorts(adapter, models.HostPortsEphemeral, rule))

	assert.Equal(t, models.HostPortsEphemeral, effectiveHostPorts(models.HostPortsStatic, 3))
	assert.Equal(t, models.HostPortsStatic, effectiveHostPorts(models.HostPortsStatic, 1))
	assert.Equal(t, models.HostPortsNone, effectiveHostPorts(models.HostPortsNone, 3))
}

func TestNetworkLabels(t *testing.T) {
	p := &DockerPlatform{handle: models.ClusterHandle{Name: "shared", Network: "vpc-1"}}
	_, _, _, rule := fixtures()
	rule.Network = "vpc-1"

	labels := p.networkLabels(rule)
	assert.Equal(t, "shared", labels[labelCluster])
	assert.Equal(t, "vpc-1", labels[labelNetwork])
	assert.Equal(t, "abc", labels[labelTenant])
	assert.Equal(t, kindNetworkRule, labels[labelKind])
	assert.Equal(t, "80/tcp", labels[labelIngress])
}
