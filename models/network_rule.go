package models

import "net/netip"

// AnyIPv4 is the ingress source that matches every IPv4 peer.
var AnyIPv4 = netip.MustParsePrefix("0.0.0.0/0")

type IngressRule struct {
	Port     uint16       `json:"port"`
	Protocol Protocol     `json:"protocol"`
	Source   netip.Prefix `json:"source"`
}

// NetworkRule is the security boundary of one tenant's service.
type NetworkRule struct {
	Name             string        `json:"name"`
	TenantID         string        `json:"tenant_id"`
	Network          string        `json:"network"` // cluster network context
	AllowAllOutbound bool          `json:"allow_all_outbound"`
	Ingress          []IngressRule `json:"ingress"`
}

// Allows reports whether inbound traffic on port/proto is permitted from any source.
func (r NetworkRule) Allows(port uint16, proto Protocol) bool {
	for _, in := range r.Ingress {
		if in.Port == port && in.Protocol == proto {
			return true
		}
	}
	return false
}
