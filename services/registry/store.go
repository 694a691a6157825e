// Package registry keeps the service registry: stable service names mapped to
// the addresses of their running replicas, served as DNS A records.
package registry

import (
	"fmt"
	"net/netip"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/ezenkico/deploy-commander/sidecar/models"
)

const DefaultDomain = "local"

type Store struct {
	domain  string
	m       sync.RWMutex
	entries map[string]models.RegistryEntry // by FQDN
}

// New creates an empty registry for names under domain.
func New(domain string) *Store {
	if domain == "" {
		domain = DefaultDomain
	}
	return &Store{
		domain:  strings.ToLower(strings.Trim(domain, ".")),
		entries: make(map[string]models.RegistryEntry),
	}
}

func (s *Store) Domain() string { return s.domain }

// FQDN is the fully qualified record name of a registry name.
func (s *Store) FQDN(name string) string {
	return dns.Fqdn(strings.ToLower(name) + "." + s.domain)
}

// Publish replaces the record set for entry.Name and returns the entry as stored.
func (s *Store) Publish(entry models.RegistryEntry) (models.RegistryEntry, error) {
	if entry.RecordType != models.RecordTypeA {
		return entry, fmt.Errorf("registry entry %q: unsupported record type %q", entry.Name, entry.RecordType)
	}
	if _, ok := dns.IsDomainName(entry.Name); !ok || entry.Name == "" {
		return entry, fmt.Errorf("registry entry %q: not a valid domain label", entry.Name)
	}
	for _, addr := range entry.Addresses {
		if !addr.Is4() {
			return entry, fmt.Errorf("registry entry %q: %s is not an IPv4 address", entry.Name, addr)
		}
	}

	entry.FQDN = s.FQDN(entry.Name)
	entry.Addresses = slices.Clone(entry.Addresses)
	slices.SortFunc(entry.Addresses, func(a, b netip.Addr) int { return a.Compare(b) })

	s.m.Lock()
	defer s.m.Unlock()
	s.entries[entry.FQDN] = entry
	return entry, nil
}

// Remove drops the record set of name, if any.
func (s *Store) Remove(name string) {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.entries, s.FQDN(name))
}

func (s *Store) Lookup(fqdn string) (models.RegistryEntry, bool) {
	s.m.RLock()
	defer s.m.RUnlock()
	e, ok := s.entries[dns.Fqdn(strings.ToLower(fqdn))]
	return e, ok
}

// Records renders the A records for fqdn.
func (s *Store) Records(fqdn string) ([]dns.RR, bool) {
	e, ok := s.Lookup(fqdn)
	if !ok {
		return nil, false
	}
	ttl := uint32(e.TTL / time.Second)
	out := make([]dns.RR, 0, len(e.Addresses))
	for _, addr := range e.Addresses {
		out = append(out, &dns.A{
			Hdr: dns.RR_Header{
				Name:   e.FQDN,
				Rrtype: dns.TypeA,
				Class:  dns.ClassINET,
				Ttl:    ttl,
			},
			A: addr.AsSlice(),
		})
	}
	return out, true
}

// Names lists every registered FQDN, sorted.
func (s *Store) Names() []string {
	s.m.RLock()
	defer s.m.RUnlock()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
