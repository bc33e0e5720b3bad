package domain

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/oriys/tetra/internal/errs"
	pkgcrypto "github.com/oriys/tetra/internal/pkg/crypto"
)

// ResourceKind discriminates the shape of a declared endpoint.
type ResourceKind string

const (
	GPULive         ResourceKind = "gpu_live"
	CPULive         ResourceKind = "cpu_live"
	GPULoadBalanced ResourceKind = "gpu_load_balanced"
	CPULoadBalanced ResourceKind = "cpu_load_balanced"
	NetworkVolume   ResourceKind = "network_volume"
	QueueBased      ResourceKind = "queue_based"
)

func (k ResourceKind) IsValid() bool {
	switch k {
	case GPULive, CPULive, GPULoadBalanced, CPULoadBalanced, NetworkVolume, QueueBased:
		return true
	}
	return false
}

func (k ResourceKind) isLoadBalanced() bool {
	return k == GPULoadBalanced || k == CPULoadBalanced
}

// HTTPMethod is the set of methods a load-balanced route may bind.
type HTTPMethod string

const (
	MethodGET    HTTPMethod = "GET"
	MethodPOST   HTTPMethod = "POST"
	MethodPUT    HTTPMethod = "PUT"
	MethodDELETE HTTPMethod = "DELETE"
	MethodPATCH  HTTPMethod = "PATCH"
)

func (m HTTPMethod) IsValid() bool {
	switch m {
	case MethodGET, MethodPOST, MethodPUT, MethodDELETE, MethodPATCH:
		return true
	}
	return false
}

// Routing carries the load-balanced HTTP binding for a function; queue-based
// kinds ignore it entirely.
type Routing struct {
	Method HTTPMethod `json:"method,omitempty"`
	Path   string     `json:"path,omitempty"`
}

func (r Routing) validate() error {
	if r.Method == "" && r.Path == "" {
		return nil
	}
	if !r.Method.IsValid() {
		return fmt.Errorf("%w: routing method %q", errs.ErrConfigValidation, r.Method)
	}
	if len(r.Path) == 0 || r.Path[0] != '/' {
		return fmt.Errorf("%w: routing path must start with \"/\", got %q", errs.ErrConfigValidation, r.Path)
	}
	return nil
}

// ResourceConfig is the immutable declarative description of a desired
// endpoint. Construct it with NewResourceConfig; once built its fields must
// not be mutated by callers.
type ResourceConfig struct {
	Kind ResourceKind `json:"kind"`
	Name string       `json:"name"`

	Image              string            `json:"image,omitempty"`
	WorkersMin         int               `json:"workers_min,omitempty"`
	WorkersMax         int               `json:"workers_max,omitempty"`
	IdleTimeoutSeconds int               `json:"idle_timeout_seconds,omitempty"`
	GPUGroup           string            `json:"gpu_group,omitempty"`
	InstanceClasses    []string          `json:"instance_classes,omitempty"`
	DiskSizeGB         int               `json:"disk_size_gb,omitempty"`
	Env                map[string]string `json:"env,omitempty"`
	VolumeRef          string            `json:"volume_ref,omitempty"`

	Routing Routing `json:"routing,omitempty"`

	resourceID string
	configHash string
}

// perInstanceDiskLimitGB caps disk_size_gb per CPU instance class; unknown
// classes are treated as unlimited (no entry).
var perInstanceDiskLimitGB = map[string]int{
	"cpu3c-2-4":  20,
	"cpu3c-4-8":  40,
	"cpu3c-8-16": 80,
	"cpu3g-2-4":  20,
	"cpu3g-4-8":  40,
	"cpu5c-2-4":  20,
	"cpu5c-4-8":  40,
}

// NewResourceConfig validates and constructs an immutable ResourceConfig,
// stamping resource_id and config_hash at construction time.
func NewResourceConfig(c ResourceConfig) (*ResourceConfig, error) {
	if !c.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown resource kind %q", errs.ErrConfigValidation, c.Kind)
	}
	if c.Name == "" {
		return nil, fmt.Errorf("%w: name is required", errs.ErrConfigValidation)
	}
	if c.Kind.isLoadBalanced() {
		if err := c.Routing.validate(); err != nil {
			return nil, err
		}
		if c.Routing.Method == "" {
			return nil, fmt.Errorf("%w: routing is mandatory for kind %q", errs.ErrConfigValidation, c.Kind)
		}
	}
	if (c.Kind == CPULive || c.Kind == CPULoadBalanced) && c.DiskSizeGB > 0 {
		for _, class := range c.InstanceClasses {
			limit, known := perInstanceDiskLimitGB[class]
			if known && c.DiskSizeGB > limit {
				return nil, fmt.Errorf("%w: disk_size_gb %d exceeds instance class %q limit %d", errs.ErrConfigValidation, c.DiskSizeGB, class, limit)
			}
		}
	}

	out := c
	out.resourceID = computeResourceID(c.Kind, out.HashedFields())
	out.configHash = computeConfigHash(out)
	return &out, nil
}

// ResourceID returns the deterministic fingerprint over kind + the identity
// subset of fields (HashedFields). Two configs with the same resource_id are
// interchangeable from the provider's point of view — they address the same
// remote resource.
func (c *ResourceConfig) ResourceID() string { return c.resourceID }

// ConfigHash is a fingerprint over the entire declared config, including
// fields HashedFields omits (env, volume_ref, routing on non-load-balanced
// kinds). Two configs can share a resource_id while differing in
// config_hash — that mismatch is exactly what the Resource Manager treats
// as drift on an otherwise-identical resource.
func (c *ResourceConfig) ConfigHash() string { return c.configHash }

// HashedFields enumerates, per kind, the fields that participate in the
// fingerprint — explicit per-kind lists rather than reflection/tag scanning,
// so cosmetics (human labels) and environment churn never perturb identity.
func (c *ResourceConfig) HashedFields() map[string]any {
	fields := map[string]any{
		"kind": string(c.Kind),
		"name": c.Name,
	}
	switch c.Kind {
	case GPULive, GPULoadBalanced:
		fields["image"] = c.Image
		fields["gpu_group"] = c.GPUGroup
		fields["workers_min"] = c.WorkersMin
		fields["workers_max"] = c.WorkersMax
		fields["idle_timeout_seconds"] = c.IdleTimeoutSeconds
	case CPULive, CPULoadBalanced:
		fields["image"] = c.Image
		fields["instance_classes"] = append([]string(nil), c.InstanceClasses...)
		fields["workers_min"] = c.WorkersMin
		fields["workers_max"] = c.WorkersMax
		fields["disk_size_gb"] = c.DiskSizeGB
		fields["idle_timeout_seconds"] = c.IdleTimeoutSeconds
	case NetworkVolume:
		fields["disk_size_gb"] = c.DiskSizeGB
	case QueueBased:
		fields["image"] = c.Image
		fields["workers_min"] = c.WorkersMin
		fields["workers_max"] = c.WorkersMax
	}
	if c.Kind.isLoadBalanced() {
		fields["routing_method"] = string(c.Routing.Method)
		fields["routing_path"] = c.Routing.Path
	}
	return fields
}

// computeResourceID hashes kind + a canonical (key-sorted) JSON encoding of
// the hashed fields, truncated to 16 hex characters.
func computeResourceID(kind ResourceKind, hashed map[string]any) string {
	keys := make([]string, 0, len(hashed))
	for k := range hashed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]struct {
		K string `json:"k"`
		V any    `json:"v"`
	}, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, struct {
			K string `json:"k"`
			V any    `json:"v"`
		}{K: k, V: hashed[k]})
	}

	id, _ := pkgcrypto.HashJSON(struct {
		Kind   string `json:"kind"`
		Fields any    `json:"fields"`
	}{Kind: string(kind), Fields: ordered})
	return id
}

// computeConfigHash hashes the full declared config (every exported field),
// so cosmetic or non-identity changes — an env var, a volume ref — still
// move the fingerprint even when they leave resource_id untouched.
func computeConfigHash(c ResourceConfig) string {
	id, _ := pkgcrypto.HashJSON(c)
	return id
}

func (c *ResourceConfig) MarshalBinary() ([]byte, error) { return json.Marshal(c) }

func (c *ResourceConfig) UnmarshalBinary(data []byte) error {
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}
	c.resourceID = computeResourceID(c.Kind, c.HashedFields())
	c.configHash = computeConfigHash(*c)
	return nil
}
