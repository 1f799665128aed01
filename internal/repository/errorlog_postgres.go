package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/errormgr"
)

var _ errormgr.OccurrenceStore = &ErrorLogPostgres{}

// ErrorLogPostgres persists handled error occurrences for operators.
type ErrorLogPostgres struct {
	db *pgxpool.Pool
}

func NewErrorLogPostgres(db *pgxpool.Pool) *ErrorLogPostgres {
	return &ErrorLogPostgres{db: db}
}

func (r *ErrorLogPostgres) Insert(ctx context.Context, occ entity.ErrorOccurrence) error {
	occID, err := uuid.Parse(occ.ID)
	if err != nil {
		return fmt.Errorf("parse occurrence ID: %w", err)
	}

	contextJSON, err := json.Marshal(occ.Context)
	if err != nil {
		return fmt.Errorf("marshal error context: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO error_log (id, code, resolved_code, http_status, dev_message, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pgtype.UUID{Bytes: occID, Valid: true},
		occ.Code,
		occ.ResolvedCode,
		occ.HTTPStatus,
		occ.DevMessage,
		contextJSON,
		occ.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert error occurrence: %w", err)
	}
	return nil
}

// ListRecent returns the newest occurrences, most recent first.
func (r *ErrorLogPostgres) ListRecent(ctx context.Context, limit int) ([]*entity.ErrorOccurrence, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, code, resolved_code, http_status, dev_message, context, created_at
		FROM error_log ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list error occurrences: %w", err)
	}
	defer rows.Close()

	var occurrences []*entity.ErrorOccurrence
	for rows.Next() {
		var (
			id          pgtype.UUID
			occ         entity.ErrorOccurrence
			contextJSON []byte
		)
		if err := rows.Scan(&id, &occ.Code, &occ.ResolvedCode, &occ.HTTPStatus,
			&occ.DevMessage, &contextJSON, &occ.CreatedAt); err != nil {
			return nil, fmt.Errorf("list error occurrences: %w", err)
		}
		occ.ID = uuid.UUID(id.Bytes).String()
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &occ.Context); err != nil {
				return nil, fmt.Errorf("decode error context: %w", err)
			}
		}
		occurrences = append(occurrences, &occ)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list error occurrences: %w", err)
	}
	return occurrences, nil
}
