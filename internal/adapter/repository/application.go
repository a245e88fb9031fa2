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

const applicationColumns = `id, namespace, name, intents, intent_states, supported_locales, engine_type, unknown_intent_threshold, normalize_text`

type applicationRepository struct{ db DBTX }

func NewApplicationRepository(db DBTX) repository.ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) List(ctx context.Context) ([]entity.ApplicationDefinition, error) {
	return r.list(ctx, `SELECT `+applicationColumns+` FROM applications ORDER BY namespace, name`)
}

func (r *applicationRepository) ListByNamespace(ctx context.Context, namespace string) ([]entity.ApplicationDefinition, error) {
	return r.list(ctx, `SELECT `+applicationColumns+` FROM applications WHERE namespace = $1 ORDER BY name`, namespace)
}

func (r *applicationRepository) GetByID(ctx context.Context, id string) (*entity.ApplicationDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	app, err := scanApplication(r.db.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

func (r *applicationRepository) Lookup(ctx context.Context, namespace, name string) (*entity.ApplicationDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	app, err := scanApplication(r.db.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE namespace = $1 AND name = $2`, namespace, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup application: %w", err)
	}
	return app, nil
}

func (r *applicationRepository) Save(ctx context.Context, app *entity.ApplicationDefinition) (*entity.ApplicationDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if app.Namespace == "" || app.Name == "" {
		return nil, fmt.Errorf("%w: application namespace and name are required", entity.ErrInvalidQuery)
	}
	id := app.ID
	if id == "" {
		id = uuid.NewString()
	}
	states := app.IntentStatesByIntent
	if states == nil {
		states = map[string][]string{}
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES (@id, @namespace, @name, @intents, @intent_states, @supported_locales, @engine_type, @threshold, @normalize_text)
		ON CONFLICT (id) DO UPDATE SET
			namespace = EXCLUDED.namespace,
			name = EXCLUDED.name,
			intents = EXCLUDED.intents,
			intent_states = EXCLUDED.intent_states,
			supported_locales = EXCLUDED.supported_locales,
			engine_type = EXCLUDED.engine_type,
			unknown_intent_threshold = EXCLUDED.unknown_intent_threshold,
			normalize_text = EXCLUDED.normalize_text
		RETURNING `+applicationColumns,
		pgx.NamedArgs{
			"id":                id,
			"namespace":         app.Namespace,
			"name":              app.Name,
			"intents":           nonNil(app.Intents),
			"intent_states":     states,
			"supported_locales": nonNil(app.SupportedLocales),
			"engine_type":       app.EngineType,
			"threshold":         app.UnknownIntentThreshold,
			"normalize_text":    app.NormalizeText,
		})
	saved, err := scanApplication(row)
	if err != nil {
		return nil, translateError(err)
	}
	return saved, nil
}

func (r *applicationRepository) list(ctx context.Context, sql string, args ...any) ([]entity.ApplicationDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	apps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.ApplicationDefinition, error) {
		app, err := scanApplication(row)
		if err != nil {
			return entity.ApplicationDefinition{}, err
		}
		return *app, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan applications: %w", err)
	}
	return apps, nil
}

func scanApplication(row pgx.Row) (*entity.ApplicationDefinition, error) {
	var app entity.ApplicationDefinition
	if err := row.Scan(
		&app.ID,
		&app.Namespace,
		&app.Name,
		&app.Intents,
		&app.IntentStatesByIntent,
		&app.SupportedLocales,
		&app.EngineType,
		&app.UnknownIntentThreshold,
		&app.NormalizeText,
	); err != nil {
		return nil, err
	}
	return &app, nil
}
