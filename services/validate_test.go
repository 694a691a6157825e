package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezenkico/deploy-commander/sidecar/models"
)

func validDescriptor() models.ServiceDescriptor {
	return models.ServiceDescriptor{
		TenantID:        "abc",
		AdapterImage:    "ghcr.io/acme/nrpc-gateway:1.4.0",
		BffImage:        "acme/abc-bff:latest",
		AdapterPort:     80,
		BffPort:         3000,
		DesiredReplicas: 3,
	}
}

func TestValidateDescriptor_OK(t *testing.T) {
	require.NoError(t, ValidateDescriptor("poc", validDescriptor()))
	require.NoError(t, ValidateDescriptor("", validDescriptor()))
}

func TestValidateDescriptor_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		mutate func(*models.ServiceDescriptor)
		field  string
	}{
		{"empty tenant", "poc", func(d *models.ServiceDescriptor) { d.TenantID = "" }, "tenant_id"},
		{"tenant with hyphen", "poc", func(d *models.ServiceDescriptor) { d.TenantID = "ab-c" }, "tenant_id"},
		{"tenant uppercase", "poc", func(d *models.ServiceDescriptor) { d.TenantID = "ABC" }, "tenant_id"},
		{"tenant leading digit", "poc", func(d *models.ServiceDescriptor) { d.TenantID = "1abc" }, "tenant_id"},
		{"target group too long", "poc", func(d *models.ServiceDescriptor) { d.TenantID = "averyveryverylongtenantname" }, "tenant_id"},
		{"missing adapter image", "poc", func(d *models.ServiceDescriptor) { d.AdapterImage = "" }, "adapter_image"},
		{"bad bff image", "poc", func(d *models.ServiceDescriptor) { d.BffImage = "Not A/Ref" }, "bff_image"},
		{"zero adapter port", "poc", func(d *models.ServiceDescriptor) { d.AdapterPort = 0 }, "adapter_port"},
		{"zero bff port", "poc", func(d *models.ServiceDescriptor) { d.BffPort = 0 }, "bff_port"},
		{"equal ports", "poc", func(d *models.ServiceDescriptor) { d.BffPort = d.AdapterPort }, "bff_port"},
		{"zero replicas", "poc", func(d *models.ServiceDescriptor) { d.DesiredReplicas = 0 }, "desired_replicas"},
		{"unknown host port mode", "poc", func(d *models.ServiceDescriptor) { d.HostPorts = "bridge" }, "host_ports"},
		{"bad prefix", "Poc_", func(d *models.ServiceDescriptor) {}, "prefix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDescriptor()
			tt.mutate(&d)

			err := ValidateDescriptor(tt.prefix, d)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidDescriptor))

			var ide *models.InvalidDescriptorError
			require.ErrorAs(t, err, &ide)
			assert.Equal(t, tt.field, ide.Field)
		})
	}
}

func TestValidateDescriptor_HostPortModes(t *testing.T) {
	for _, mode := range []models.HostPortMode{"", models.HostPortsStatic, models.HostPortsEphemeral, models.HostPortsNone} {
		d := validDescriptor()
		d.HostPorts = mode
		assert.NoError(t, ValidateDescriptor("poc", d), "mode %q", mode)
	}
}

func TestValidatePrefix(t *testing.T) {
	assert.NoError(t, ValidatePrefix("poc"))
	assert.NoError(t, ValidatePrefix("team-a"))
	assert.Error(t, ValidatePrefix("-poc"))
	assert.Error(t, ValidatePrefix("poc-"))
}
