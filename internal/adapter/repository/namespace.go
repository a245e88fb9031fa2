package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/repository"
)

type namespaceConfigurationRepository struct{ db DBTX }

func NewNamespaceConfigurationRepository(db DBTX) repository.NamespaceConfigurationRepository {
	return &namespaceConfigurationRepository{db: db}
}

func (r *namespaceConfigurationRepository) List(ctx context.Context) ([]entity.NamespaceConfiguration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT namespace, imports FROM namespace_configurations ORDER BY namespace`)
	if err != nil {
		return nil, fmt.Errorf("list namespace configurations: %w", err)
	}
	configs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.NamespaceConfiguration, error) {
		var cfg entity.NamespaceConfiguration
		err := row.Scan(&cfg.Namespace, &cfg.Imports)
		return cfg, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan namespace configurations: %w", err)
	}
	return configs, nil
}

func (r *namespaceConfigurationRepository) Save(ctx context.Context, cfg *entity.NamespaceConfiguration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO namespace_configurations (namespace, imports) VALUES ($1, $2)
		ON CONFLICT (namespace) DO UPDATE SET imports = EXCLUDED.imports`,
		cfg.Namespace, nonNil(cfg.Imports))
	if err != nil {
		return fmt.Errorf("save namespace configuration: %w", translateError(err))
	}
	return nil
}
