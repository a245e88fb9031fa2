package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/repository"
)

type buildTriggerRepository struct{ db DBTX }

func NewBuildTriggerRepository(db DBTX) repository.BuildTriggerRepository {
	return &buildTriggerRepository{db: db}
}

func (r *buildTriggerRepository) Save(ctx context.Context, trigger *entity.ModelBuildTrigger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if trigger.ID == "" {
		trigger.ID = uuid.NewString()
	}
	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = time.Now()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO model_build_triggers (id, application_id, language, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		trigger.ID, trigger.ApplicationID, trigger.Language.Code(), trigger.CreatedAt)
	if err != nil {
		return fmt.Errorf("save build trigger: %w", translateError(err))
	}
	return nil
}

// ListPending returns the oldest triggers first.
func (r *buildTriggerRepository) ListPending(ctx context.Context, limit int32) ([]entity.ModelBuildTrigger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, application_id, language, created_at FROM model_build_triggers
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list build triggers: %w", err)
	}
	triggers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.ModelBuildTrigger, error) {
		var (
			t         entity.ModelBuildTrigger
			language  string
			createdAt pgtype.Timestamptz
		)
		if err := row.Scan(&t.ID, &t.ApplicationID, &language, &createdAt); err != nil {
			return t, err
		}
		t.Language = entity.Locale(language)
		t.CreatedAt = timeValue(createdAt)
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan build triggers: %w", err)
	}
	return triggers, nil
}

func (r *buildTriggerRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM model_build_triggers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete build trigger: %w", err)
	}
	return nil
}
