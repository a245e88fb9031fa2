package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/repository"
	"github.com/eslsoft/intentd/pkg/filterexpr"
)

const sentenceColumns = `application_id, language, text, normalized_text, intent_id, entities, status,
	last_intent_probability, last_entity_probability, forced_normalization, created_at, updated_at`

const defaultPageSize = 20

type sentenceRepository struct{ db DBTX }

func NewSentenceRepository(db DBTX) repository.SentenceRepository {
	return &sentenceRepository{db: db}
}

func (r *sentenceRepository) FindTrusted(ctx context.Context, applicationID string, language entity.Locale, text string, normalized bool) (*entity.ClassifiedSentence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	column := "text"
	if normalized {
		column = "normalized_text"
	}
	row := r.db.QueryRow(ctx, `
		SELECT `+sentenceColumns+` FROM sentences
		WHERE application_id = $1 AND language = $2 AND `+column+` = $3 AND status = ANY($4)
		ORDER BY updated_at DESC
		LIMIT 1`,
		applicationID, language.Code(), text,
		[]string{string(entity.SentenceStatusValidated), string(entity.SentenceStatusModel)})
	s, err := scanSentence(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find sentence: %w", err)
	}
	return s, nil
}

func (r *sentenceRepository) Save(ctx context.Context, s *entity.ClassifiedSentence) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.ApplicationID == "" || s.Text == "" {
		return fmt.Errorf("%w: sentence application and text are required", entity.ErrInvalidQuery)
	}
	s.Normalize(time.Now())
	_, err := r.db.Exec(ctx, `
		INSERT INTO sentences (`+sentenceColumns+`, entity_types)
		VALUES (@application_id, @language, @text, @normalized_text, @intent_id, @entities, @status,
			@last_intent_probability, @last_entity_probability, @forced_normalization, @created_at, @updated_at, @entity_types)
		ON CONFLICT (application_id, language, text) DO UPDATE SET
			normalized_text = EXCLUDED.normalized_text,
			intent_id = EXCLUDED.intent_id,
			entities = EXCLUDED.entities,
			entity_types = EXCLUDED.entity_types,
			status = EXCLUDED.status,
			last_intent_probability = EXCLUDED.last_intent_probability,
			last_entity_probability = EXCLUDED.last_entity_probability,
			forced_normalization = EXCLUDED.forced_normalization,
			updated_at = EXCLUDED.updated_at`,
		pgx.NamedArgs{
			"application_id":          s.ApplicationID,
			"language":                s.Language.Code(),
			"text":                    s.Text,
			"normalized_text":         s.NormalizedText,
			"intent_id":               s.Classification.IntentID,
			"entities":                s.Classification.Entities,
			"entity_types":            entityTypeNames(s.Classification.Entities),
			"status":                  string(s.Status),
			"last_intent_probability": s.LastIntentProbability,
			"last_entity_probability": s.LastEntityProbability,
			"forced_normalization":    s.ForcedNormalization,
			"created_at":              s.CreatedAt,
			"updated_at":              s.UpdatedAt,
		})
	if err != nil {
		return fmt.Errorf("save sentence: %w", translateError(err))
	}
	return nil
}

func (r *sentenceRepository) Search(ctx context.Context, query *repository.SentenceQuery) ([]entity.ClassifiedSentence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	where, args := searchConditions(query)
	rows, err := r.db.Query(ctx,
		`SELECT `+sentenceColumns+` FROM sentences WHERE `+where+` ORDER BY created_at, text`, args)
	if err != nil {
		return nil, fmt.Errorf("search sentences: %w", err)
	}
	return collectSentences(rows)
}

func (r *sentenceRepository) UpdateStatus(ctx context.Context, query *repository.SentenceQuery, from, to entity.SentenceStatus) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	where, args := searchConditions(&repository.SentenceQuery{
		ApplicationID: query.ApplicationID,
		Namespace:     query.Namespace,
		Language:      query.Language,
		IntentIDs:     query.IntentIDs,
		EntityType:    query.EntityType,
		UpdatedBefore: query.UpdatedBefore,
		Statuses:      []entity.SentenceStatus{from},
	})
	args["to_status"] = string(to)
	args["now"] = time.Now()
	tag, err := r.db.Exec(ctx, `UPDATE sentences SET status = @to_status, updated_at = @now WHERE `+where, args)
	if err != nil {
		return 0, fmt.Errorf("update sentence status: %w", err)
	}
	return tag.RowsAffected(), nil
}

type listSentencesParams struct {
	Status               *string
	Statuses             []string
	Language             *string
	IntentID             *string
	IntentIDs            []string
	TextPrefix           *string
	EntityType           *string
	MinIntentProbability *float64
	MaxIntentProbability *float64
	UpdatedAfter         *time.Time
	UpdatedBefore        *time.Time
	PrimaryKey           string
	PrimaryDesc          bool
	SecondaryKey         string
	SecondaryDesc        bool
}

func (r *sentenceRepository) List(ctx context.Context, query *repository.ListSentenceQuery) ([]entity.ClassifiedSentence, int64, error) {
	var p listSentencesParams
	if err := filterexpr.Bind(query, &p, listSentencesSchema); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", entity.ErrInvalidQuery, err)
	}
	orderBy, err := filterexpr.OrderClause(listSentencesSchema.Order, p.PrimaryKey, p.PrimaryDesc, p.SecondaryKey, p.SecondaryDesc)
	if err != nil {
		return nil, 0, err
	}

	statuses := p.Statuses
	if p.Status != nil {
		statuses = append(statuses, *p.Status)
	}
	intentIDs := p.IntentIDs
	if p.IntentID != nil {
		intentIDs = append(intentIDs, *p.IntentID)
	}
	sq := &repository.SentenceQuery{ApplicationID: query.ApplicationID, IntentIDs: intentIDs}
	for _, s := range statuses {
		sq.Statuses = append(sq.Statuses, entity.SentenceStatus(s))
	}
	if p.Language != nil {
		sq.Language = entity.Locale(*p.Language)
	}
	if p.EntityType != nil {
		sq.EntityType = *p.EntityType
	}
	where, args := searchConditions(sq)
	var extra []string
	if p.TextPrefix != nil {
		extra = append(extra, `text LIKE @text_prefix ESCAPE '\'`)
		args["text_prefix"] = escapeLike(*p.TextPrefix) + "%"
	}
	if p.MinIntentProbability != nil {
		extra = append(extra, `last_intent_probability >= @min_p`)
		args["min_p"] = *p.MinIntentProbability
	}
	if p.MaxIntentProbability != nil {
		extra = append(extra, `last_intent_probability <= @max_p`)
		args["max_p"] = *p.MaxIntentProbability
	}
	if p.UpdatedAfter != nil {
		extra = append(extra, `updated_at >= @updated_after`)
		args["updated_after"] = *p.UpdatedAfter
	}
	if p.UpdatedBefore != nil {
		extra = append(extra, `updated_at <= @updated_before`)
		args["updated_before"] = *p.UpdatedBefore
	}
	if len(extra) > 0 {
		where += " AND " + strings.Join(extra, " AND ")
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM sentences WHERE `+where, args).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sentences: %w", err)
	}

	if query.PageSize <= 0 {
		query.PageSize = defaultPageSize
	}
	args["limit"] = query.PageSize
	args["offset"] = query.Offset()
	rows, err := r.db.Query(ctx,
		`SELECT `+sentenceColumns+` FROM sentences WHERE `+where+` ORDER BY `+orderBy+` LIMIT @limit OFFSET @offset`, args)
	if err != nil {
		return nil, 0, fmt.Errorf("list sentences: %w", err)
	}
	sentences, err := collectSentences(rows)
	if err != nil {
		return nil, 0, err
	}
	return sentences, total, nil
}

// searchConditions renders the WHERE clause shared by Search, List and UpdateStatus.
func searchConditions(q *repository.SentenceQuery) (string, pgx.NamedArgs) {
	conds := []string{"TRUE"}
	args := pgx.NamedArgs{}
	switch {
	case q.ApplicationID != "":
		conds = append(conds, "application_id = @application_id")
		args["application_id"] = q.ApplicationID
	case q.Namespace != "":
		conds = append(conds, "application_id IN (SELECT id FROM applications WHERE namespace = @namespace)")
		args["namespace"] = q.Namespace
	}
	if q.Language != entity.LocaleUnspecified {
		conds = append(conds, "language = @language")
		args["language"] = q.Language.Code()
	}
	if statuses := statusStrings(q.Statuses); len(statuses) > 0 {
		conds = append(conds, "status = ANY(@statuses)")
		args["statuses"] = statuses
	}
	if len(q.IntentIDs) > 0 {
		conds = append(conds, "intent_id = ANY(@intent_ids)")
		args["intent_ids"] = q.IntentIDs
	}
	if q.EntityType != "" {
		conds = append(conds, "@entity_type = ANY(entity_types)")
		args["entity_type"] = q.EntityType
	}
	if !q.UpdatedBefore.IsZero() {
		conds = append(conds, "updated_at <= @updated_before")
		args["updated_before"] = q.UpdatedBefore
	}
	return strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func collectSentences(rows pgx.Rows) ([]entity.ClassifiedSentence, error) {
	sentences, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.ClassifiedSentence, error) {
		s, err := scanSentence(row)
		if err != nil {
			return entity.ClassifiedSentence{}, err
		}
		return *s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan sentences: %w", err)
	}
	return sentences, nil
}

func scanSentence(row pgx.Row) (*entity.ClassifiedSentence, error) {
	var (
		s                    entity.ClassifiedSentence
		language, status     string
		createdAt, updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&s.ApplicationID,
		&language,
		&s.Text,
		&s.NormalizedText,
		&s.Classification.IntentID,
		&s.Classification.Entities,
		&status,
		&s.LastIntentProbability,
		&s.LastEntityProbability,
		&s.ForcedNormalization,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	s.Language = entity.Locale(language)
	s.Status = entity.ParseSentenceStatus(status)
	s.CreatedAt = timeValue(createdAt)
	s.UpdatedAt = timeValue(updatedAt)
	return &s, nil
}
