package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/doorman/internal/model"
)

// PostgresAccessRepo はPostgreSQLを使用したアクセス履歴リポジトリ。
// 追記と読み取りのみを提供する。
type PostgresAccessRepo struct {
	db *sql.DB
}

// NewPostgresAccessRepo はPostgresAccessRepoを生成する。
func NewPostgresAccessRepo(db *sql.DB) *PostgresAccessRepo {
	return &PostgresAccessRepo{db: db}
}

// Append はアクセス記録を追記する。
func (r *PostgresAccessRepo) Append(ctx context.Context, rec *model.AccessRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_history (id, door_id, user_id, accessed_at)
		 VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.DoorID, rec.UserID, rec.AccessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append access record: %w", err)
	}
	return nil
}

// ListByDoorID はドアの全アクセス記録を挿入順で返す。
func (r *PostgresAccessRepo) ListByDoorID(ctx context.Context, doorID string) ([]*model.AccessRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, door_id, user_id, accessed_at
		 FROM access_history
		 WHERE door_id = $1
		 ORDER BY accessed_at`,
		doorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list access records: %w", err)
	}
	defer rows.Close()

	return scanAccessRecords(rows)
}

// ListByDoorAndUser はドアのアクセス記録を指定ユーザーに絞って挿入順で返す。
func (r *PostgresAccessRepo) ListByDoorAndUser(ctx context.Context, doorID, userID string) ([]*model.AccessRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, door_id, user_id, accessed_at
		 FROM access_history
		 WHERE door_id = $1 AND user_id = $2
		 ORDER BY accessed_at`,
		doorID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list access records by user: %w", err)
	}
	defer rows.Close()

	return scanAccessRecords(rows)
}

// scanAccessRecords は結果セットをAccessRecordのスライスに変換する。
func scanAccessRecords(rows *sql.Rows) ([]*model.AccessRecord, error) {
	var records []*model.AccessRecord
	for rows.Next() {
		rec := &model.AccessRecord{}
		if err := rows.Scan(&rec.ID, &rec.DoorID, &rec.UserID, &rec.AccessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan access record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate access records: %w", err)
	}

	return records, nil
}

// compile-time interface check
var _ AccessRepository = (*PostgresAccessRepo)(nil)
