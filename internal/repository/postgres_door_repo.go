package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/doorman/internal/model"
)

// PostgresDoorRepo はPostgreSQLを使用したドアリポジトリ。
type PostgresDoorRepo struct {
	db *sql.DB
}

// NewPostgresDoorRepo はPostgresDoorRepoを生成する。
func NewPostgresDoorRepo(db *sql.DB) *PostgresDoorRepo {
	return &PostgresDoorRepo{db: db}
}

// Create はドアを作成する。
func (r *PostgresDoorRepo) Create(ctx context.Context, door *model.Door) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO doors (id, about, owner_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		door.ID, door.About, door.OwnerID, door.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create door: %w", err)
	}
	return nil
}

// FindByID は指定IDのドアを取得する。見つからない場合はnilを返す。
func (r *PostgresDoorRepo) FindByID(ctx context.Context, id string) (*model.Door, error) {
	door := &model.Door{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, about, owner_id, created_at FROM doors WHERE id = $1`,
		id,
	).Scan(&door.ID, &door.About, &door.OwnerID, &door.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find door: %w", err)
	}

	return door, nil
}

// ListByOwnerID は指定ユーザーが所有するドアを作成順で返す。
func (r *PostgresDoorRepo) ListByOwnerID(ctx context.Context, ownerID string) ([]*model.Door, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, about, owner_id, created_at FROM doors WHERE owner_id = $1 ORDER BY created_at`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list doors by owner: %w", err)
	}
	defer rows.Close()

	var doors []*model.Door
	for rows.Next() {
		door := &model.Door{}
		if err := rows.Scan(&door.ID, &door.About, &door.OwnerID, &door.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan door: %w", err)
		}
		doors = append(doors, door)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate doors: %w", err)
	}

	return doors, nil
}

// compile-time interface check
var _ DoorRepository = (*PostgresDoorRepo)(nil)
