package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ezenkico/deploy-commander/sidecar/models"
)

type Listener struct {
	name string

	mu      sync.Mutex
	groups  map[string]models.RoutingRule
	failure error
}

func NewListener(name string) *Listener {
	return &Listener{name: name, groups: make(map[string]models.RoutingRule)}
}

func (l *Listener) Name() string { return l.name }

// FailNext makes the next attach return err.
func (l *Listener) FailNext(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failure = err
}

func (l *Listener) AttachTargetGroup(ctx context.Context, rule models.RoutingRule) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.failure; err != nil {
		l.failure = nil
		return "", err
	}

	if existing, ok := l.groups[rule.TargetGroupName]; ok && existing.ServiceName != rule.ServiceName {
		return "", &models.NameCollisionError{Kind: "target-group", Name: rule.TargetGroupName, Owner: existing.ServiceName}
	}
	l.groups[rule.TargetGroupName] = rule
	return l.name + "/" + rule.TargetGroupName, nil
}

func (l *Listener) DetachTargetGroup(ctx context.Context, rule models.RoutingRule) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.groups[rule.TargetGroupName]; ok && existing.ServiceName == rule.ServiceName {
		delete(l.groups, rule.TargetGroupName)
	}
	return nil
}

func (l *Listener) TargetGroup(name string) (models.RoutingRule, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.groups[name]
	return r, ok
}

func (l *Listener) TargetGroups() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.groups))
	for k := range l.groups {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
