package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/doorman/internal/model"
)

// PostgresPermissionRepo はPostgreSQLを使用したドア権限リポジトリ。
type PostgresPermissionRepo struct {
	db *sql.DB
}

// NewPostgresPermissionRepo はPostgresPermissionRepoを生成する。
func NewPostgresPermissionRepo(db *sql.DB) *PostgresPermissionRepo {
	return &PostgresPermissionRepo{db: db}
}

// Find は(door_id, user_id)の権限行を取得する。見つからない場合はnilを返す。
func (r *PostgresPermissionRepo) Find(ctx context.Context, doorID, userID string) (*model.DoorPermission, error) {
	perm := &model.DoorPermission{}
	err := r.db.QueryRowContext(ctx,
		`SELECT door_id, user_id, can_edit, can_open
		 FROM door_permissions
		 WHERE door_id = $1 AND user_id = $2`,
		doorID, userID,
	).Scan(&perm.DoorID, &perm.UserID, &perm.CanEdit, &perm.CanOpen)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find permission: %w", err)
	}

	return perm, nil
}

// ListByDoorID はドアの全権限行を返す。
func (r *PostgresPermissionRepo) ListByDoorID(ctx context.Context, doorID string) ([]*model.DoorPermission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT door_id, user_id, can_edit, can_open
		 FROM door_permissions
		 WHERE door_id = $1`,
		doorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var perms []*model.DoorPermission
	for rows.Next() {
		perm := &model.DoorPermission{}
		if err := rows.Scan(&perm.DoorID, &perm.UserID, &perm.CanEdit, &perm.CanOpen); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}

	return perms, nil
}

// Upsert は権限行を作成または更新する。
// 複合主キー(door_id, user_id)の衝突時はフラグのみを更新する。
func (r *PostgresPermissionRepo) Upsert(ctx context.Context, perm *model.DoorPermission) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO door_permissions (door_id, user_id, can_edit, can_open)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (door_id, user_id)
		 DO UPDATE SET can_edit = EXCLUDED.can_edit, can_open = EXCLUDED.can_open`,
		perm.DoorID, perm.UserID, perm.CanEdit, perm.CanOpen,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert permission: %w", err)
	}
	return nil
}

// Delete は権限行を削除する。冪等であり、行が存在しなくてもエラーにならない。
func (r *PostgresPermissionRepo) Delete(ctx context.Context, doorID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM door_permissions WHERE door_id = $1 AND user_id = $2`,
		doorID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PermissionRepository = (*PostgresPermissionRepo)(nil)
