package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveNames(t *testing.T) {
	n := DeriveNames("", "abc")

	assert.Equal(t, "poc-abc-bff-task", n.Family)
	assert.Equal(t, "poc-abc-bff-task-def", n.TaskDefinition)
	assert.Equal(t, "poc-abc-nrpc-container", n.AdapterContainer)
	assert.Equal(t, "poc-abc-bff-container", n.BFFContainer)
	assert.Equal(t, "poc-abc-bff-service-sg", n.SecurityGroup)
	assert.Equal(t, "poc-abc-bff-service", n.Service)
	assert.Equal(t, n.Service, n.Registry)
	assert.Equal(t, "poc-abc-nrpc-tg", n.TargetGroup)
}

func TestDeriveNames_CustomPrefix(t *testing.T) {
	n := DeriveNames("staging", "xyz")
	assert.Equal(t, "staging-xyz-bff-service", n.Service)
	assert.Equal(t, "staging-xyz-nrpc-tg", n.TargetGroup)
}

func TestDeriveNames_Deterministic(t *testing.T) {
	assert.Equal(t, DeriveNames("poc", "abc"), DeriveNames("poc", "abc"))
}

func TestDeriveNames_TenantsDisjoint(t *testing.T) {
	tenants := []string{"abc", "xyz", "ab", "abcd", "a1"}

	owner := map[string]string{}
	for _, tenant := range tenants {
		for _, name := range DeriveNames("poc", tenant).All() {
			prev, taken := owner[name]
			require.Falsef(t, taken, "%q derived for both %q and %q", name, prev, tenant)
			owner[name] = tenant
		}
	}
}

func TestDeriveNames_AllDeduplicates(t *testing.T) {
	// Service and registry share a name.
	assert.Len(t, DeriveNames("poc", "abc").All(), 7)
}

func TestReplicaName(t *testing.T) {
	assert.Equal(t, "poc-abc-bff-container-0", ReplicaName("poc-abc-bff-container", 0))
	assert.Equal(t, "poc-abc-nrpc-container-2", ReplicaName("poc-abc-nrpc-container", 2))
}
