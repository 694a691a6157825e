package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Resource as stored by the agent.
type Resource struct {
	ID               uuid.UUID         `json:"id"`
	ResourceType     string            `json:"resource_type"`
	Name             string            `json:"name"`
	PublicConnection *PublicConnection `json:"public_connection,omitempty"`
	Metadata         json.RawMessage   `json:"metadata"` // Bson -> Raw JSON
}

type PublicConnection struct {
	Address *string `json:"address,omitempty"`
	Port    *uint16 `json:"port,omitempty"`
}

type CreateResource struct {
	ResourceType     string            `json:"resource_type"`
	Name             string            `json:"name"`
	PublicConnection *PublicConnection `json:"public_connection,omitempty"`
	Metadata         json.RawMessage   `json:"metadata"`
}
