package models

import (
	"errors"
	"fmt"
)

// ErrInvalidDescriptor matches every descriptor validation failure via errors.Is.
var ErrInvalidDescriptor = errors.New("invalid service descriptor")

type InvalidDescriptorError struct {
	Field  string
	Reason string
}

func (e *InvalidDescriptorError) Error() string {
	return fmt.Sprintf("invalid service descriptor: %s: %s", e.Field, e.Reason)
}

func (e *InvalidDescriptorError) Is(target error) bool {
	return target == ErrInvalidDescriptor
}

// Stage names a provisioning step.
type Stage string

const (
	StageTaskTemplate   Stage = "task-template"
	StageNetworkRule    Stage = "network-rule"
	StageManagedService Stage = "managed-service"
	StageRegistry       Stage = "registry"
	StageRoutingRule    Stage = "routing-rule"
	StageTeardown       Stage = "teardown"
)

// ProvisioningError is a platform call that failed at Stage.
// Earlier stages are left in place.
type ProvisioningError struct {
	Stage Stage
	Cause error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Stage, e.Cause)
}

func (e *ProvisioningError) Unwrap() error { return e.Cause }

// NameCollisionError reports a derived name already owned by someone else.
type NameCollisionError struct {
	Kind  string // network, service, target-group, ...
	Name  string
	Owner string // tenant or service that holds the name, if known
}

func (e *NameCollisionError) Error() string {
	if e.Owner == "" {
		return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s %q already exists (owned by %q)", e.Kind, e.Name, e.Owner)
}

// IsNameCollision reports whether err carries a NameCollisionError.
func IsNameCollision(err error) bool {
	var nc *NameCollisionError
	return errors.As(err, &nc)
}

// FailedStage returns the stage of a ProvisioningError in err's chain.
func FailedStage(err error) (Stage, bool) {
	var pe *ProvisioningError
	if errors.As(err, &pe) {
		return pe.Stage, true
	}
	return "", false
}
