// Package spec parses the author-facing YAML resource manifest into
// domain.ResourceConfig values, the declarative input the Resource Manager
// and Deployment Orchestrator consume. It is the one authoring-time
// collaborator kept in this tree — code scanning and packaging of the
// function body itself live entirely outside the control plane.
package spec

import (
	"fmt"
	"io"
	"os"

	"github.com/oriys/tetra/internal/domain"
	"gopkg.in/yaml.v3"
)

// ResourceSpec is the YAML shape of one declared resource.
type ResourceSpec struct {
	APIVersion string `yaml:"apiVersion,omitempty"`
	Kind       string `yaml:"kind"`

	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`

	Image string `yaml:"image,omitempty"`

	WorkersMin         int `yaml:"workersMin,omitempty"`
	WorkersMax         int `yaml:"workersMax,omitempty"`
	IdleTimeoutSeconds int `yaml:"idleTimeoutSeconds,omitempty"`

	GPUGroup        string   `yaml:"gpuGroup,omitempty"`
	InstanceClasses []string `yaml:"instanceClasses,omitempty"`
	DiskSizeGB      int      `yaml:"diskSizeGB,omitempty"`
	VolumeRef       string   `yaml:"volumeRef,omitempty"`

	// Env supports $SECRET:name references; resolving those against a
	// secrets backend is a collaborator concern, not this parser's.
	Env map[string]string `yaml:"env,omitempty"`

	Routing *RoutingSpec `yaml:"routing,omitempty"`
}

// RoutingSpec is the YAML shape of a load-balanced resource's HTTP binding.
type RoutingSpec struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
}

// ManifestFile holds every resource declared across one YAML file's
// documents.
type ManifestFile struct {
	Resources []ResourceSpec
}

// ParseFile reads and parses path as a multi-document YAML manifest.
func ParseFile(path string) (*ManifestFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes r as a sequence of YAML documents, each one ResourceSpec.
// Empty documents (blank name and kind) are skipped, matching the
// convention of separating resources with "---" and stray blank sections.
func Parse(r io.Reader) (*ManifestFile, error) {
	decoder := yaml.NewDecoder(r)
	var specs []ResourceSpec

	for {
		var s ResourceSpec
		err := decoder.Decode(&s)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		if s.Name == "" && s.Kind == "" {
			continue
		}
		specs = append(specs, s)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no resource declarations found")
	}
	return &ManifestFile{Resources: specs}, nil
}

// ToResourceConfig validates s and builds the immutable domain.ResourceConfig
// the rest of the control plane operates on.
func (s *ResourceSpec) ToResourceConfig() (*domain.ResourceConfig, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if s.Kind == "" {
		return nil, fmt.Errorf("kind is required")
	}

	cfg := domain.ResourceConfig{
		Kind:               domain.ResourceKind(s.Kind),
		Name:               s.Name,
		Image:              s.Image,
		WorkersMin:         s.WorkersMin,
		WorkersMax:         s.WorkersMax,
		IdleTimeoutSeconds: s.IdleTimeoutSeconds,
		GPUGroup:           s.GPUGroup,
		InstanceClasses:    s.InstanceClasses,
		DiskSizeGB:         s.DiskSizeGB,
		VolumeRef:          s.VolumeRef,
		Env:                s.Env,
	}
	if s.Routing != nil {
		cfg.Routing = domain.Routing{
			Method: domain.HTTPMethod(s.Routing.Method),
			Path:   s.Routing.Path,
		}
	}

	return domain.NewResourceConfig(cfg)
}

// ToResourceConfigs converts every declared resource in m, stopping at the
// first invalid one — a manifest is deployed as a unit, so a single bad
// declaration should surface before anything is dispatched.
func (m *ManifestFile) ToResourceConfigs() ([]*domain.ResourceConfig, error) {
	out := make([]*domain.ResourceConfig, 0, len(m.Resources))
	for i, s := range m.Resources {
		cfg, err := s.ToResourceConfig()
		if err != nil {
			return nil, fmt.Errorf("resource %d (%s): %w", i, s.Name, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// ExampleYAML returns a documented example manifest, surfaced by the CLI's
// scaffold command.
func ExampleYAML() string {
	return `# tetra resource manifest
apiVersion: tetra/v1
kind: gpu_live

name: image-classifier
image: registry.example.com/image-classifier:latest

gpuGroup: A100
workersMin: 0
workersMax: 5
idleTimeoutSeconds: 60

env:
  LOG_LEVEL: info
  MODEL_PATH: $SECRET:model_path
`
}
