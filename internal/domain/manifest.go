package domain

import (
	"encoding/json"
	"time"
)

// ResourceDescriptor is the manifest's per-logical-name entry: enough to
// reconstruct a DeployedResource reference without re-querying the provider.
type ResourceDescriptor struct {
	EndpointID  string       `json:"endpoint_id"`
	Name        string       `json:"name"`
	Kind        ResourceKind `json:"kind"`
	ReplicaURLs []string     `json:"replica_urls"`
}

// Manifest is the name -> endpoint directory: source of truth is the
// provider, a local file is the fallback, and the whole thing is TTL-cached
// in memory by the Manifest Fetcher.
type Manifest struct {
	Version          string                        `json:"version"`
	ProjectName      string                        `json:"project_name"`
	GeneratedAt      time.Time                     `json:"generated_at"`
	Resources        map[string]ResourceDescriptor `json:"resources"`
	FunctionRegistry map[string]string             `json:"function_registry"`
	Routes           map[string]Routing            `json:"routes,omitempty"`
}

// EmptyManifest returns a well-formed, empty manifest — the fallback when
// neither a provider pull nor a local file is available.
func EmptyManifest() *Manifest {
	return &Manifest{
		Version:          "1",
		Resources:        map[string]ResourceDescriptor{},
		FunctionRegistry: map[string]string{},
	}
}

func (m *Manifest) MarshalBinary() ([]byte, error) { return json.Marshal(m) }

func (m *Manifest) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, m) }
