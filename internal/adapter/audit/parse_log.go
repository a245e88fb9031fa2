package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/repository"
)

const defaultLogLimit = 100

type parseLogRepository struct{ store *Store }

func NewParseLogRepository(store *Store) repository.ParseLogRepository {
	return &parseLogRepository{store: store}
}

func (r *parseLogRepository) Save(ctx context.Context, log *entity.ParseRequestLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	query, err := json.Marshal(log.Query)
	if err != nil {
		return fmt.Errorf("encode parse query: %w", err)
	}
	var result sql.NullString
	if log.Result != nil {
		raw, err := json.Marshal(log.Result)
		if err != nil {
			return fmt.Errorf("encode parse result: %w", err)
		}
		result = sql.NullString{String: string(raw), Valid: true}
	}
	_, err = r.store.db.ExecContext(ctx, r.store.rebind(`
		INSERT INTO parse_request_logs (id, application_id, query, result, duration_ms, error, date_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		log.ID, log.ApplicationID, string(query), result, log.Duration.Milliseconds(), log.Error, toMillis(log.Date))
	if err != nil {
		return fmt.Errorf("insert parse log: %w", err)
	}
	return nil
}

// List returns the newest logs first.
func (r *parseLogRepository) List(ctx context.Context, filter entity.ParseLogFilter) ([]entity.ParseRequestLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}
	rows, err := r.store.db.QueryContext(ctx, r.store.rebind(`
		SELECT id, application_id, query, result, duration_ms, error, date_ms
		FROM parse_request_logs
		WHERE (? = '' OR application_id = ?) AND date_ms >= ?
		ORDER BY date_ms DESC, id DESC
		LIMIT ?`),
		filter.ApplicationID, filter.ApplicationID, toMillis(filter.Since), limit)
	if err != nil {
		return nil, fmt.Errorf("list parse logs: %w", err)
	}
	defer rows.Close()

	var logs []entity.ParseRequestLog
	for rows.Next() {
		var (
			log        entity.ParseRequestLog
			query      string
			result     sql.NullString
			durationMs int64
			dateMs     int64
		)
		if err := rows.Scan(&log.ID, &log.ApplicationID, &query, &result, &durationMs, &log.Error, &dateMs); err != nil {
			return nil, fmt.Errorf("scan parse log: %w", err)
		}
		log.Query = &entity.ParseQuery{}
		if err := json.Unmarshal([]byte(query), log.Query); err != nil {
			return nil, fmt.Errorf("decode parse query %s: %w", log.ID, err)
		}
		if result.Valid {
			log.Result = &entity.ParseResult{}
			if err := json.Unmarshal([]byte(result.String), log.Result); err != nil {
				return nil, fmt.Errorf("decode parse result %s: %w", log.ID, err)
			}
		}
		log.Duration = time.Duration(durationMs) * time.Millisecond
		log.Date = fromMillis(dateMs)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
