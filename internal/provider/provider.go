// Package provider models the only contract the control plane needs from
// the serverless fleet's HTTP/GraphQL API: an opaque create/read/delete/list
// surface plus invocation and manifest pull/push. Everything about the
// provider's wire format is a collaborator concern; the core only sees the
// ProviderClient interface.
package provider

import (
	"context"
	"time"

	"github.com/oriys/tetra/internal/domain"
)

// ProviderClient is the collaborator interface the core depends on for all
// provider interaction. The core never imports a concrete implementation
// directly outside of wiring code.
type ProviderClient interface {
	// List returns remote resources of the given kind matching nameFilter,
	// used by the Resource Manager to detect a pre-existing endpoint before
	// creating a new one.
	List(ctx context.Context, kind domain.ResourceKind, nameFilter string) ([]domain.RemoteResource, error)

	// Create provisions a new resource from payload (the kind-specific
	// ResourceConfig fields, opaque to this interface) and returns its
	// provider-assigned descriptor.
	Create(ctx context.Context, kind domain.ResourceKind, payload map[string]any) (domain.RemoteResource, error)

	// Delete tears down a previously created resource by id.
	Delete(ctx context.Context, id string) error

	// Invoke dispatches one call envelope to url and returns the raw
	// response body. timeout bounds the call; the implementation applies it to ctx.
	Invoke(ctx context.Context, url string, envelope domain.CallEnvelope, timeout time.Duration) ([]byte, error)

	// FetchManifest pulls the authoritative manifest from the provider's
	// directory service. Returns ErrNotImplemented when the provider has
	// no "fetch manifest" capability (a documented stub) so the Manifest
	// Fetcher can fall back to its local copy.
	FetchManifest(ctx context.Context, mothershipID string) (*domain.Manifest, error)

	// UpdateManifest best-effort persists a manifest to the provider's
	// directory service, keyed by environment id.
	UpdateManifest(ctx context.Context, envID string, manifest *domain.Manifest) error
}
