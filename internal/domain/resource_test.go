package domain

import (
	"errors"
	"testing"

	"github.com/oriys/tetra/internal/errs"
)

func gpuConfig() ResourceConfig {
	return ResourceConfig{
		Kind:       GPULive,
		Name:       "classifier",
		Image:      "registry.example.com/classifier:v3",
		WorkersMin: 0,
		WorkersMax: 4,
		GPUGroup:   "A100",
	}
}

func TestResourceIDIsDeterministic(t *testing.T) {
	a, err := NewResourceConfig(gpuConfig())
	if err != nil {
		t.Fatalf("build a: %v", err)
	}
	b, err := NewResourceConfig(gpuConfig())
	if err != nil {
		t.Fatalf("build b: %v", err)
	}
	if a.ResourceID() != b.ResourceID() {
		t.Fatalf("identical configs produced differing resource_ids: %s vs %s", a.ResourceID(), b.ResourceID())
	}
	if a.ConfigHash() != b.ConfigHash() {
		t.Fatalf("identical configs produced differing config_hashes")
	}
}

func TestResourceIDIgnoresEnvButConfigHashDoesNot(t *testing.T) {
	base := gpuConfig()
	withEnv := gpuConfig()
	withEnv.Env = map[string]string{"LOG_LEVEL": "debug"}

	a, err := NewResourceConfig(base)
	if err != nil {
		t.Fatalf("build base: %v", err)
	}
	b, err := NewResourceConfig(withEnv)
	if err != nil {
		t.Fatalf("build with env: %v", err)
	}

	if a.ResourceID() != b.ResourceID() {
		t.Fatal("env churn must not move resource_id")
	}
	if a.ConfigHash() == b.ConfigHash() {
		t.Fatal("env churn must move config_hash")
	}
}

func TestResourceIDMovesWithHashedFields(t *testing.T) {
	changed := gpuConfig()
	changed.Image = "registry.example.com/classifier:v4"

	a, _ := NewResourceConfig(gpuConfig())
	b, err := NewResourceConfig(changed)
	if err != nil {
		t.Fatalf("build changed: %v", err)
	}
	if a.ResourceID() == b.ResourceID() {
		t.Fatal("an image change must move resource_id for GPU kinds")
	}
}

func TestNewResourceConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  ResourceConfig
	}{
		{"unknown kind", ResourceConfig{Kind: "warp_drive", Name: "x"}},
		{"missing name", ResourceConfig{Kind: GPULive}},
		{"load-balanced without routing", ResourceConfig{Kind: CPULoadBalanced, Name: "x", InstanceClasses: []string{"cpu3c-2-4"}}},
		{"unsupported routing method", ResourceConfig{Kind: GPULoadBalanced, Name: "x", Routing: Routing{Method: "TRACE", Path: "/x"}}},
		{"routing path without slash", ResourceConfig{Kind: GPULoadBalanced, Name: "x", Routing: Routing{Method: MethodPOST, Path: "predict"}}},
		{"disk over instance limit", ResourceConfig{Kind: CPULive, Name: "x", InstanceClasses: []string{"cpu3c-2-4"}, DiskSizeGB: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewResourceConfig(tt.cfg); !errors.Is(err, errs.ErrConfigValidation) {
				t.Fatalf("expected ErrConfigValidation, got %v", err)
			}
		})
	}
}

func TestQueueBasedIgnoresRouting(t *testing.T) {
	cfg, err := NewResourceConfig(ResourceConfig{
		Kind:  QueueBased,
		Name:  "worker",
		Image: "registry.example.com/worker:latest",
		// Routing on a queue-based kind is carried but not validated or
		// fingerprinted.
		Routing: Routing{Method: "TRACE", Path: "nope"},
	})
	if err != nil {
		t.Fatalf("queue-based kinds must not validate routing, got %v", err)
	}
	if _, ok := cfg.HashedFields()["routing_method"]; ok {
		t.Fatal("queue-based hashed fields must not include routing")
	}
}

func TestUnknownInstanceClassIsUnbounded(t *testing.T) {
	if _, err := NewResourceConfig(ResourceConfig{
		Kind: CPULive, Name: "big-disk", Image: "x",
		InstanceClasses: []string{"cpu9x-64-512"}, DiskSizeGB: 4000,
	}); err != nil {
		t.Fatalf("unknown instance classes carry no disk limit, got %v", err)
	}
}
