package services

import (
	"fmt"
	"regexp"

	"github.com/distribution/reference"

	"github.com/ezenkico/deploy-commander/sidecar/models"
)

var (
	tenantPattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)
	prefixPattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)
)

func invalid(field, format string, args ...any) error {
	return &models.InvalidDescriptorError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ValidatePrefix checks the naming prefix shared by every tenant.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	if !prefixPattern.MatchString(prefix) {
		return invalid("prefix", "%q must be lowercase alphanumerics and '-'", prefix)
	}
	return nil
}

// ValidateDescriptor checks d (defaults applied) before anything is created.
func ValidateDescriptor(prefix string, d models.ServiceDescriptor) error {
	if err := ValidatePrefix(prefix); err != nil {
		return err
	}

	if d.TenantID == "" {
		return invalid("tenant_id", "is required")
	}
	if !tenantPattern.MatchString(d.TenantID) {
		return invalid("tenant_id", "%q must start with a letter and contain only lowercase letters and digits", d.TenantID)
	}
	if tg := DeriveNames(prefix, d.TenantID).TargetGroup; len(tg) > MaxTargetGroupName {
		return invalid("tenant_id", "%q yields target group %q longer than %d characters", d.TenantID, tg, MaxTargetGroupName)
	}

	if err := validateImage("adapter_image", d.AdapterImage); err != nil {
		return err
	}
	if err := validateImage("bff_image", d.BffImage); err != nil {
		return err
	}

	if d.AdapterPort == 0 {
		return invalid("adapter_port", "must be in 1-65535")
	}
	if d.BffPort == 0 {
		return invalid("bff_port", "must be in 1-65535")
	}
	if d.AdapterPort == d.BffPort {
		return invalid("bff_port", "must differ from adapter_port (%d)", d.AdapterPort)
	}

	if d.DesiredReplicas < 1 {
		return invalid("desired_replicas", "must be at least 1")
	}

	switch d.HostPorts {
	case "", models.HostPortsStatic, models.HostPortsEphemeral, models.HostPortsNone:
	default:
		return invalid("host_ports", "unknown mode %q", d.HostPorts)
	}

	return nil
}

func validateImage(field string, image models.ImageRef) error {
	if image == "" {
		return invalid(field, "is required")
	}
	if _, err := reference.ParseNormalizedNamed(string(image)); err != nil {
		return invalid(field, "%q: %v", image, err)
	}
	return nil
}
