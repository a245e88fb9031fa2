package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/repository"
)

type modelBuildRepository struct{ store *Store }

func NewModelBuildRepository(store *Store) repository.ModelBuildRepository {
	return &modelBuildRepository{store: store}
}

func (r *modelBuildRepository) Save(ctx context.Context, build *entity.ModelBuild) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.store.db.ExecContext(ctx, r.store.rebind(`
		INSERT INTO model_builds (id, application_id, language, type, intent_id, entity_type_name,
			nb_sentences, duration_ms, error, error_message, date_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		build.ID, build.ApplicationID, build.Language.Code(), string(build.Type), build.IntentID, build.EntityTypeName,
		build.NbSentences, build.Duration.Milliseconds(), build.Error, build.ErrorMessage, toMillis(build.Date))
	if err != nil {
		return fmt.Errorf("insert model build: %w", err)
	}
	return nil
}

// ListByApplication returns the newest builds first.
func (r *modelBuildRepository) ListByApplication(ctx context.Context, applicationID string, limit int32) ([]entity.ModelBuild, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLogLimit
	}
	rows, err := r.store.db.QueryContext(ctx, r.store.rebind(`
		SELECT id, application_id, language, type, intent_id, entity_type_name,
			nb_sentences, duration_ms, error, error_message, date_ms
		FROM model_builds
		WHERE application_id = ?
		ORDER BY date_ms DESC, id DESC
		LIMIT ?`), applicationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list model builds: %w", err)
	}
	defer rows.Close()

	var builds []entity.ModelBuild
	for rows.Next() {
		var (
			b                  entity.ModelBuild
			language, typ      string
			durationMs, dateMs int64
		)
		if err := rows.Scan(&b.ID, &b.ApplicationID, &language, &typ, &b.IntentID, &b.EntityTypeName,
			&b.NbSentences, &durationMs, &b.Error, &b.ErrorMessage, &dateMs); err != nil {
			return nil, fmt.Errorf("scan model build: %w", err)
		}
		b.Language = entity.Locale(language)
		b.Type = entity.ModelBuildType(typ)
		b.Duration = time.Duration(durationMs) * time.Millisecond
		b.Date = fromMillis(dateMs)
		builds = append(builds, b)
	}
	return builds, rows.Err()
}
