package spec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oriys/tetra/internal/domain"
)

const sampleManifest = `
apiVersion: tetra/v1
kind: gpu_live
name: classifier
image: registry.example.com/classifier:latest
gpuGroup: A100
workersMin: 0
workersMax: 4
env:
  LOG_LEVEL: info
---
apiVersion: tetra/v1
kind: cpu_load_balanced
name: preprocess
image: registry.example.com/preprocess:latest
instanceClasses: ["cpu3c-2-4"]
workersMax: 2
routing:
  method: POST
  path: /v1/preprocess
`

func TestParseMultiDocumentManifest(t *testing.T) {
	m, err := Parse(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(m.Resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(m.Resources))
	}
	if m.Resources[0].Name != "classifier" || m.Resources[1].Name != "preprocess" {
		t.Fatalf("unexpected resource order: %+v", m.Resources)
	}
}

func TestToResourceConfigsBuildsValidConfigs(t *testing.T) {
	m, err := Parse(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	configs, err := m.ToResourceConfigs()
	if err != nil {
		t.Fatalf("to resource configs: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(configs))
	}
	if configs[0].Kind != domain.GPULive {
		t.Fatalf("expected gpu_live, got %s", configs[0].Kind)
	}
	if configs[1].Routing.Method != domain.MethodPOST || configs[1].Routing.Path != "/v1/preprocess" {
		t.Fatalf("unexpected routing: %+v", configs[1].Routing)
	}
}

func TestToResourceConfigsFailsFastOnInvalidResource(t *testing.T) {
	bad := `
kind: gpu_load_balanced
name: missing-routing
image: x
`
	m, err := Parse(strings.NewReader(bad))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := m.ToResourceConfigs(); err == nil {
		t.Fatal("expected error for load-balanced kind missing mandatory routing")
	}
}

func TestParseEmptyManifestErrors(t *testing.T) {
	if _, err := Parse(strings.NewReader("")); err == nil {
		t.Fatal("expected error for a manifest with no resources")
	}
}

func TestParseRejectsMissingNameAndKind(t *testing.T) {
	_, err := Parse(strings.NewReader("description: nothing here\n"))
	if err == nil {
		t.Fatal("expected error, manifest has neither name nor kind anywhere")
	}
}

func TestParseFileReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resources.yaml")
	if err := os.WriteFile(path, []byte(sampleManifest), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	m, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse file: %v", err)
	}
	if len(m.Resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(m.Resources))
	}
}
