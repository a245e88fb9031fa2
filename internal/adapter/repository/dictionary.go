package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/repository"
)

type dictionaryRepository struct{ db DBTX }

func NewDictionaryRepository(db DBTX) repository.DictionaryRepository {
	return &dictionaryRepository{db: db}
}

func (r *dictionaryRepository) List(ctx context.Context) ([]entity.DictionaryData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT namespace, entity_name, "values", only_values, min_distance
		FROM dictionaries ORDER BY namespace, entity_name`)
	if err != nil {
		return nil, fmt.Errorf("list dictionaries: %w", err)
	}
	dicts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.DictionaryData, error) {
		var d entity.DictionaryData
		err := row.Scan(&d.Namespace, &d.EntityName, &d.Values, &d.OnlyValues, &d.MinDistance)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan dictionaries: %w", err)
	}
	return dicts, nil
}

func (r *dictionaryRepository) Save(ctx context.Context, data *entity.DictionaryData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO dictionaries (namespace, entity_name, "values", only_values, min_distance)
		VALUES (@namespace, @entity_name, @values, @only_values, @min_distance)
		ON CONFLICT (namespace, entity_name) DO UPDATE SET
			"values" = EXCLUDED."values",
			only_values = EXCLUDED.only_values,
			min_distance = EXCLUDED.min_distance`,
		pgx.NamedArgs{
			"namespace":    data.Namespace,
			"entity_name":  data.EntityName,
			"values":       nonNil(data.Values),
			"only_values":  data.OnlyValues,
			"min_distance": data.MinDistance,
		})
	if err != nil {
		return fmt.Errorf("save dictionary: %w", translateError(err))
	}
	return nil
}
