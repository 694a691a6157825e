package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/ezenkico/deploy-commander/sidecar/models"
)

// Resource interactions
const agentResourcesPath = "/v1/resources"

func (a *AgentCommunication) CreateResource(
	ctx context.Context,
	resource models.CreateResource,
) (uuid.UUID, error) {

	var out struct {
		ID uuid.UUID `json:"id"`
	}
	err := a.do(ctx, "create resource", http.MethodPost, agentResourcesPath, resource, http.StatusCreated, &out)
	if err != nil {
		return uuid.Nil, err
	}
	return out.ID, nil
}

func (a *AgentCommunication) ListResources(
	ctx context.Context,
	resourceType *string,
	limit *uint32,
	offset *uint32,
) ([]uuid.UUID, error) {

	q := url.Values{}
	if resourceType != nil {
		q.Set("resource_type", *resourceType)
	}
	if limit != nil {
		q.Set("limit", fmt.Sprintf("%d", *limit))
	}
	if offset != nil {
		q.Set("offset", fmt.Sprintf("%d", *offset))
	}

	path := agentResourcesPath
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var ids []uuid.UUID
	if err := a.do(ctx, "list resources", http.MethodGet, path, nil, http.StatusOK, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (a *AgentCommunication) GetResource(
	ctx context.Context,
	id uuid.UUID,
) (*models.Resource, error) {

	var resource models.Resource
	path := fmt.Sprintf("%s/%s", agentResourcesPath, id.String())
	if err := a.do(ctx, "get resource", http.MethodGet, path, nil, http.StatusOK, &resource); err != nil {
		return nil, err
	}
	return &resource, nil
}

func (a *AgentCommunication) DeleteResource(
	ctx context.Context,
	id uuid.UUID,
) error {

	path := fmt.Sprintf("%s/%s", agentResourcesPath, id.String())
	return a.do(ctx, "delete resource", http.MethodDelete, path, nil, http.StatusNoContent, nil)
}

// FindResource returns the resource of resourceType called name, or nil.
func (a *AgentCommunication) FindResource(
	ctx context.Context,
	resourceType string,
	name string,
) (*models.Resource, error) {

	ids, err := a.ListResources(ctx, &resourceType, nil, nil)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		r, err := a.GetResource(ctx, id)
		if err != nil {
			// Deleted between list and get.
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if r.Name == name {
			return r, nil
		}
	}
	return nil, nil
}
