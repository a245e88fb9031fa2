package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/eslsoft/intentd/internal/entity"
)

// DBTX is the subset of pgxpool.Pool and pgx.Tx used by the repositories.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return entity.ErrDuplicateDefinition
		case "22P02", "23502":
			return errors.Join(entity.ErrInvalidQuery, err)
		}
	}
	return err
}

func timeValue(ts pgtype.Timestamptz) (t time.Time) {
	if ts.Valid {
		return ts.Time
	}
	return
}

// nonNil keeps JSONB columns from receiving null.
func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
