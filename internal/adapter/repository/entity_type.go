package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/repository"
)

const entityTypeColumns = `name, description, dictionary, obfuscated, sub_entities`

type entityTypeRepository struct{ db DBTX }

func NewEntityTypeRepository(db DBTX) repository.EntityTypeRepository {
	return &entityTypeRepository{db: db}
}

func (r *entityTypeRepository) List(ctx context.Context) ([]entity.EntityTypeDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+entityTypeColumns+` FROM entity_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list entity types: %w", err)
	}
	defs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.EntityTypeDefinition, error) {
		def, err := scanEntityType(row)
		if err != nil {
			return entity.EntityTypeDefinition{}, err
		}
		return *def, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan entity types: %w", err)
	}
	return defs, nil
}

func (r *entityTypeRepository) GetByName(ctx context.Context, name string) (*entity.EntityTypeDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := scanEntityType(r.db.QueryRow(ctx, `SELECT `+entityTypeColumns+` FROM entity_types WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get entity type: %w", err)
	}
	return def, nil
}

// Save inserts def, or replaces the stored definition of the same name.
func (r *entityTypeRepository) Save(ctx context.Context, def *entity.EntityTypeDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ns, name := entity.SplitQualifiedName(def.Name); ns == "" || name == "" {
		return fmt.Errorf("%w: entity type %q is not qualified", entity.ErrInvalidQuery, def.Name)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO entity_types (`+entityTypeColumns+`)
		VALUES (@name, @description, @dictionary, @obfuscated, @sub_entities)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			dictionary = EXCLUDED.dictionary,
			obfuscated = EXCLUDED.obfuscated,
			sub_entities = EXCLUDED.sub_entities`,
		pgx.NamedArgs{
			"name":         def.Name,
			"description":  def.Description,
			"dictionary":   def.Dictionary,
			"obfuscated":   def.Obfuscated,
			"sub_entities": nonNil(def.SubEntities),
		})
	if err != nil {
		return fmt.Errorf("save entity type: %w", translateError(err))
	}
	return nil
}

func scanEntityType(row pgx.Row) (*entity.EntityTypeDefinition, error) {
	var def entity.EntityTypeDefinition
	if err := row.Scan(&def.Name, &def.Description, &def.Dictionary, &def.Obfuscated, &def.SubEntities); err != nil {
		return nil, err
	}
	return &def, nil
}
