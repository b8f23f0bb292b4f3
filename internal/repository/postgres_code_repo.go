package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/doorman/internal/model"
)

// PostgresCodeRepo はPostgreSQLを使用したワンタイムコードリポジトリ。
type PostgresCodeRepo struct {
	db *sql.DB
}

// NewPostgresCodeRepo はPostgresCodeRepoを生成する。
func NewPostgresCodeRepo(db *sql.DB) *PostgresCodeRepo {
	return &PostgresCodeRepo{db: db}
}

// Create はコードを作成する。
func (r *PostgresCodeRepo) Create(ctx context.Context, code *model.DoorCode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO door_codes (code, door_id, creator_id, created_at, expires_at, used)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		code.Code, code.DoorID, code.CreatorID, code.CreatedAt, code.ExpiresAt, code.Used,
	)
	if err != nil {
		return fmt.Errorf("failed to create door code: %w", err)
	}
	return nil
}

// FindByCode は指定コードを取得する。見つからない場合はnilを返す。
func (r *PostgresCodeRepo) FindByCode(ctx context.Context, code string) (*model.DoorCode, error) {
	dc := &model.DoorCode{}
	err := r.db.QueryRowContext(ctx,
		`SELECT code, door_id, creator_id, created_at, expires_at, used
		 FROM door_codes
		 WHERE code = $1`,
		code,
	).Scan(&dc.Code, &dc.DoorID, &dc.CreatorID, &dc.CreatedAt, &dc.ExpiresAt, &dc.Used)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find door code: %w", err)
	}

	return dc, nil
}

// Redeem は指定ドアの未使用・未期限切れコードを原子的に消費する。
// 読み取りとused反転を条件付きUPDATE1文にまとめることで、
// 同一コードへのN個の同時消費のうち成功するのは必ず1つだけになる。
// 消費できなかった場合はnilを返す（理由は呼び出し側では区別しない）。
func (r *PostgresCodeRepo) Redeem(ctx context.Context, code, doorID string) (*model.DoorCode, error) {
	dc := &model.DoorCode{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE door_codes
		 SET used = TRUE
		 WHERE code = $1 AND door_id = $2 AND used = FALSE
		   AND (expires_at IS NULL OR expires_at > now())
		 RETURNING code, door_id, creator_id, created_at, expires_at, used`,
		code, doorID,
	).Scan(&dc.Code, &dc.DoorID, &dc.CreatorID, &dc.CreatedAt, &dc.ExpiresAt, &dc.Used)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to redeem door code: %w", err)
	}

	return dc, nil
}

// compile-time interface check
var _ CodeRepository = (*PostgresCodeRepo)(nil)
