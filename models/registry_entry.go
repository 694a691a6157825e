package models

import (
	"net/netip"
	"time"
)

type RecordType string

const RecordTypeA RecordType = "A"

// RegistryEntry maps a stable service name to the addresses of its replicas.
type RegistryEntry struct {
	Name        string        `json:"name"`
	FQDN        string        `json:"fqdn,omitempty"` // set by the registry
	TenantID    string        `json:"tenant_id"`
	ServiceName string        `json:"service_name"`
	Network     string        `json:"network"`
	RecordType  RecordType    `json:"record_type"`
	TTL         time.Duration `json:"ttl"`
	Addresses   []netip.Addr  `json:"addresses,omitempty"`
}
