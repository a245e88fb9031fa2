package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/repository"
)

const intentColumns = `id, namespace, name, label, entities, entities_regexp, application_ids, shared_intents, mandatory_states`

type intentRepository struct{ db DBTX }

func NewIntentRepository(db DBTX) repository.IntentRepository {
	return &intentRepository{db: db}
}

func (r *intentRepository) List(ctx context.Context) ([]entity.IntentDefinition, error) {
	return r.list(ctx, `SELECT `+intentColumns+` FROM intents ORDER BY namespace, name`)
}

func (r *intentRepository) ListByApplication(ctx context.Context, applicationID string) ([]entity.IntentDefinition, error) {
	return r.list(ctx, `SELECT `+intentColumns+` FROM intents WHERE application_ids ? $1 ORDER BY namespace, name`, applicationID)
}

func (r *intentRepository) GetByID(ctx context.Context, id string) (*entity.IntentDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	intent, err := scanIntent(r.db.QueryRow(ctx, `SELECT `+intentColumns+` FROM intents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get intent: %w", err)
	}
	return intent, nil
}

func (r *intentRepository) Save(ctx context.Context, intent *entity.IntentDefinition) (*entity.IntentDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if intent.Namespace == "" || intent.Name == "" {
		return nil, fmt.Errorf("%w: intent namespace and name are required", entity.ErrInvalidQuery)
	}
	id := intent.ID
	if id == "" {
		id = uuid.NewString()
	}
	regexps := intent.EntitiesRegexp
	if regexps == nil {
		regexps = map[entity.Locale][]entity.EntityRegexp{}
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO intents (`+intentColumns+`)
		VALUES (@id, @namespace, @name, @label, @entities, @entities_regexp, @application_ids, @shared_intents, @mandatory_states)
		ON CONFLICT (id) DO UPDATE SET
			namespace = EXCLUDED.namespace,
			name = EXCLUDED.name,
			label = EXCLUDED.label,
			entities = EXCLUDED.entities,
			entities_regexp = EXCLUDED.entities_regexp,
			application_ids = EXCLUDED.application_ids,
			shared_intents = EXCLUDED.shared_intents,
			mandatory_states = EXCLUDED.mandatory_states
		RETURNING `+intentColumns,
		pgx.NamedArgs{
			"id":               id,
			"namespace":        intent.Namespace,
			"name":             intent.Name,
			"label":            intent.Label,
			"entities":         nonNil(intent.Entities),
			"entities_regexp":  regexps,
			"application_ids":  nonNil(intent.ApplicationIDs),
			"shared_intents":   nonNil(intent.SharedIntents),
			"mandatory_states": nonNil(intent.MandatoryStates),
		})
	saved, err := scanIntent(row)
	if err != nil {
		return nil, translateError(err)
	}
	return saved, nil
}

func (r *intentRepository) list(ctx context.Context, sql string, args ...any) ([]entity.IntentDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	intents, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.IntentDefinition, error) {
		intent, err := scanIntent(row)
		if err != nil {
			return entity.IntentDefinition{}, err
		}
		return *intent, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan intents: %w", err)
	}
	return intents, nil
}

func scanIntent(row pgx.Row) (*entity.IntentDefinition, error) {
	var intent entity.IntentDefinition
	if err := row.Scan(
		&intent.ID,
		&intent.Namespace,
		&intent.Name,
		&intent.Label,
		&intent.Entities,
		&intent.EntitiesRegexp,
		&intent.ApplicationIDs,
		&intent.SharedIntents,
		&intent.MandatoryStates,
	); err != nil {
		return nil, err
	}
	return &intent, nil
}
