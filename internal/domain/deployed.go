package domain

import (
	"encoding/json"
	"time"
)

// DeployedResource is a ResourceConfig plus the provider-assigned identity.
// It is never mutated in place: on drift the Resource Manager replaces the
// registry entry wholesale.
type DeployedResource struct {
	ResourceID  string         `json:"resource_id"`
	EndpointID  string         `json:"endpoint_id"`
	Name        string         `json:"name"`
	Kind        ResourceKind   `json:"kind"`
	ReplicaURLs []string       `json:"replica_urls"`
	ConfigHash  string         `json:"config_hash"`
	Config      ResourceConfig `json:"config"`
	DeployedAt  time.Time      `json:"deployed_at"`
}

func (d *DeployedResource) MarshalBinary() ([]byte, error) { return json.Marshal(d) }

func (d *DeployedResource) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, d)
}

// RemoteResource is what a ProviderClient returns from List/Create: the
// provider's view of an endpoint, prior to being wrapped into a
// DeployedResource.
type RemoteResource struct {
	ID   string       `json:"id"`
	URLs []string     `json:"urls"`
	Name string       `json:"name"`
	Kind ResourceKind `json:"kind"`
}
