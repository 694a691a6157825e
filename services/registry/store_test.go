package registry

import (
	"net/netip"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezenkico/deploy-commander/sidecar/models"
)

func entry(name string, addrs ...string) models.RegistryEntry {
	e := models.RegistryEntry{
		Name:        name,
		TenantID:    "abc",
		ServiceName: name,
		RecordType:  models.RecordTypeA,
		TTL:         60 * time.Second,
	}
	for _, a := range addrs {
		e.Addresses = append(e.Addresses, netip.MustParseAddr(a))
	}
	return e
}

func TestStore_Publish(t *testing.T) {
	s := New("")
	assert.Equal(t, "local", s.Domain())

	got, err := s.Publish(entry("poc-abc-bff-service", "10.0.0.3", "10.0.0.1"))
	require.NoError(t, err)
	assert.Equal(t, "poc-abc-bff-service.local.", got.FQDN)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.3")}, got.Addresses)

	stored, ok := s.Lookup("POC-ABC-BFF-SERVICE.local")
	require.True(t, ok)
	assert.Equal(t, got, stored)
}

func TestStore_PublishReplaces(t *testing.T) {
	s := New("internal.")
	_, err := s.Publish(entry("svc", "10.0.0.1"))
	require.NoError(t, err)
	_, err = s.Publish(entry("svc", "10.0.0.9"))
	require.NoError(t, err)

	e, ok := s.Lookup("svc.internal.")
	require.True(t, ok)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.9")}, e.Addresses)
	assert.Equal(t, []string{"svc.internal."}, s.Names())
}

func TestStore_PublishRejects(t *testing.T) {
	s := New("local")

	e := entry("svc", "10.0.0.1")
	e.RecordType = "AAAA"
	_, err := s.Publish(e)
	assert.Error(t, err)

	_, err = s.Publish(entry("svc", "fd00::1"))
	assert.Error(t, err)

	_, err = s.Publish(entry("", "10.0.0.1"))
	assert.Error(t, err)

	assert.Empty(t, s.Names())
}

func TestStore_Records(t *testing.T) {
	s := New("local")
	_, err := s.Publish(entry("svc", "10.0.0.1", "10.0.0.2"))
	require.NoError(t, err)

	rrs, ok := s.Records("svc.local.")
	require.True(t, ok)
	require.Len(t, rrs, 2)

	a, ok := rrs[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "svc.local.", a.Hdr.Name)
	assert.Equal(t, uint32(60), a.Hdr.Ttl)
	assert.Equal(t, "10.0.0.1", a.A.String())

	_, ok = s.Records("missing.local.")
	assert.False(t, ok)
}

func TestStore_Remove(t *testing.T) {
	s := New("local")
	_, err := s.Publish(entry("svc", "10.0.0.1"))
	require.NoError(t, err)

	s.Remove("svc")
	_, ok := s.Lookup("svc.local.")
	assert.False(t, ok)

	// Removing twice is fine.
	s.Remove("svc")
}
