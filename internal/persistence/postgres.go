package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oriys/tetra/internal/domain"
)

// RemoteStore mirrors the Resource Manager's in-memory registry into a
// durable store outside the local filesystem, so a deployment history
// survives a lost .tetra directory. It is always best-effort: callers log
// and swallow its errors rather than let it mask a successful deploy.
type RemoteStore struct {
	pool *pgxpool.Pool
}

// NewRemoteStore opens a pool against dsn and ensures the deployed_resources
// table exists. An empty dsn disables the tier entirely (nil, nil).
func NewRemoteStore(ctx context.Context, dsn string) (*RemoteStore, error) {
	if dsn == "" {
		return nil, nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &RemoteStore{pool: pool}
	if err := s.pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *RemoteStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS deployed_resources (
			resource_id  TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			kind         TEXT NOT NULL,
			endpoint_id  TEXT NOT NULL,
			config_hash  TEXT NOT NULL,
			data         JSONB NOT NULL,
			deployed_at  TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure deployed_resources schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RemoteStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// UpsertDeployedResource mirrors one DeployedResource into the
// deployed_resources table, replacing any prior row for the same
// resource_id. The full struct is kept as JSONB alongside its indexed
// columns so history queries don't need a schema migration to add a field
// already present on domain.DeployedResource.
func (s *RemoteStore) UpsertDeployedResource(ctx context.Context, d *domain.DeployedResource) error {
	if s == nil {
		return nil
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal deployed resource: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO deployed_resources (resource_id, name, kind, endpoint_id, config_hash, data, deployed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, NOW())
		ON CONFLICT (resource_id) DO UPDATE SET
			name        = EXCLUDED.name,
			kind        = EXCLUDED.kind,
			endpoint_id = EXCLUDED.endpoint_id,
			config_hash = EXCLUDED.config_hash,
			data        = EXCLUDED.data,
			deployed_at = EXCLUDED.deployed_at,
			updated_at  = NOW()
	`, d.ResourceID, d.Name, string(d.Kind), d.EndpointID, d.ConfigHash, data, d.DeployedAt)
	if err != nil {
		return fmt.Errorf("upsert deployed resource: %w", err)
	}
	return nil
}

// DeleteDeployedResource removes the row for id, mirroring an Undeploy.
// Deleting a row that was never persisted (store disabled at deploy time)
// is not an error.
func (s *RemoteStore) DeleteDeployedResource(ctx context.Context, id string) error {
	if s == nil {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM deployed_resources WHERE resource_id = $1`, id); err != nil {
		return fmt.Errorf("delete deployed resource: %w", err)
	}
	return nil
}

// ListDeployedResources returns the full deployment history ordered by most
// recently deployed, for audit/history queries outside the live registry.
func (s *RemoteStore) ListDeployedResources(ctx context.Context, limit int) ([]*domain.DeployedResource, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT data FROM deployed_resources
		ORDER BY deployed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deployed resources: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.DeployedResource, 0, limit)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan deployed resource: %w", err)
		}
		var d domain.DeployedResource
		if err := json.Unmarshal(data, &d); err != nil {
			continue
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deployed resources rows: %w", err)
	}
	return out, nil
}
