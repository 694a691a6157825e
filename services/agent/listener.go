package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ezenkico/deploy-commander/sidecar/models"
)

// TargetGroupResourceType is the agent resource type of listener target groups.
const TargetGroupResourceType = "target-group"

type healthCheckMetadata struct {
	Path            string `json:"path"`
	IntervalSeconds int    `json:"interval_seconds"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
}

type targetGroupMetadata struct {
	Listener    string              `json:"listener"`
	Service     string              `json:"service"`
	Tenant      string              `json:"tenant"`
	Protocol    models.Protocol     `json:"protocol"`
	Port        uint16              `json:"port"`
	HealthCheck healthCheckMetadata `json:"health_check"`
}

func metadataFor(rule models.RoutingRule) targetGroupMetadata {
	return targetGroupMetadata{
		Listener: rule.Listener,
		Service:  rule.ServiceName,
		Tenant:   rule.TenantID,
		Protocol: rule.Protocol,
		Port:     rule.Port,
		HealthCheck: healthCheckMetadata{
			Path:            rule.HealthCheck.Path,
			IntervalSeconds: int(rule.HealthCheck.Interval.Seconds()),
			TimeoutSeconds:  int(rule.HealthCheck.Timeout.Seconds()),
		},
	}
}

// Listener publishes target groups of a load balancer listener as agent
// resources.
type Listener struct {
	comm   *AgentCommunication
	handle models.ListenerHandle
	logger zerolog.Logger
}

func NewListener(comm *AgentCommunication, handle models.ListenerHandle, logger zerolog.Logger) *Listener {
	return &Listener{
		comm:   comm,
		handle: handle,
		logger: logger.With().Str("pkg", "agent").Str("listener", handle.Name).Logger(),
	}
}

func (l *Listener) Name() string { return l.handle.Name }

func (l *Listener) AttachTargetGroup(ctx context.Context, rule models.RoutingRule) (string, error) {
	meta, err := json.Marshal(metadataFor(rule))
	if err != nil {
		return "", fmt.Errorf("marshal target group %q: %w", rule.TargetGroupName, err)
	}

	existing, err := l.comm.FindResource(ctx, TargetGroupResourceType, rule.TargetGroupName)
	if err != nil {
		return "", fmt.Errorf("look up target group %q: %w", rule.TargetGroupName, err)
	}
	if existing != nil {
		var current targetGroupMetadata
		if err := json.Unmarshal(existing.Metadata, &current); err != nil {
			return "", fmt.Errorf("target group %q has unreadable metadata: %w", rule.TargetGroupName, err)
		}
		if current.Service != rule.ServiceName || current.Listener != rule.Listener {
			return "", &models.NameCollisionError{Kind: "target-group", Name: rule.TargetGroupName, Owner: current.Service}
		}

		// Same service: keep it if nothing changed, otherwise replace.
		var compact bytes.Buffer
		if json.Compact(&compact, existing.Metadata) == nil && bytes.Equal(compact.Bytes(), meta) {
			return existing.ID.String(), nil
		}
		if err := l.comm.DeleteResource(ctx, existing.ID); err != nil && !IsNotFound(err) {
			return "", fmt.Errorf("replace target group %q: %w", rule.TargetGroupName, err)
		}
		l.logger.Info().Str("name", rule.TargetGroupName).Msg("replacing target group")
	}

	id, err := l.comm.CreateResource(ctx, models.CreateResource{
		ResourceType: TargetGroupResourceType,
		Name:         rule.TargetGroupName,
		PublicConnection: &models.PublicConnection{
			Address: l.handle.Address,
			Port:    l.handle.Port,
		},
		Metadata: meta,
	})
	if err != nil {
		if IsConflict(err) {
			return "", &models.NameCollisionError{Kind: "target-group", Name: rule.TargetGroupName}
		}
		return "", err
	}

	l.logger.Debug().Str("name", rule.TargetGroupName).Str("id", id.String()).Msg("target group attached")
	return id.String(), nil
}

// DetachTargetGroup deletes rule's target group when its metadata shows it
// still belongs to rule's service on this listener.
func (l *Listener) DetachTargetGroup(ctx context.Context, rule models.RoutingRule) error {
	existing, err := l.comm.FindResource(ctx, TargetGroupResourceType, rule.TargetGroupName)
	if err != nil {
		return fmt.Errorf("look up target group %q: %w", rule.TargetGroupName, err)
	}
	if existing == nil {
		return nil
	}

	var current targetGroupMetadata
	if err := json.Unmarshal(existing.Metadata, &current); err != nil {
		return fmt.Errorf("target group %q has unreadable metadata: %w", rule.TargetGroupName, err)
	}
	if current.Service != rule.ServiceName || current.Listener != rule.Listener {
		l.logger.Warn().
			Str("name", rule.TargetGroupName).
			Str("owner", current.Service).
			Msg("target group not owned by service, leaving it")
		return nil
	}

	if err := l.comm.DeleteResource(ctx, existing.ID); err != nil && !IsNotFound(err) {
		return err
	}
	l.logger.Debug().Str("name", rule.TargetGroupName).Msg("target group detached")
	return nil
}
