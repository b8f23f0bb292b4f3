package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/doorman/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, discord_id, username, avatar, created_at FROM user_profiles WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.DiscordID, &user.Username, &user.Avatar, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindOrCreateByDiscordID はdiscord_idでユーザーを検索し、存在しなければ作成する。
// INSERT ... ON CONFLICT DO NOTHINGの後に再読込することで、
// 同一discord_idの同時初回ログインでも重複行を作らない。
// 既存行が見つかった場合、表示属性は更新しない（初回書き込み優先）。
func (r *PostgresUserRepo) FindOrCreateByDiscordID(ctx context.Context, user *model.User) (*model.User, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_profiles (id, discord_id, username, avatar, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (discord_id) DO NOTHING`,
		user.ID, user.DiscordID, user.Username, user.Avatar, user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	// 挿入の成否に関わらず再読込する。
	// 競合した場合はここで勝者の行が返る。
	found := &model.User{}
	err = r.db.QueryRowContext(ctx,
		`SELECT id, discord_id, username, avatar, created_at FROM user_profiles WHERE discord_id = $1`,
		user.DiscordID,
	).Scan(&found.ID, &found.DiscordID, &found.Username, &found.Avatar, &found.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read user after insert: %w", err)
	}

	return found, nil
}

// List は全ユーザーを作成順で返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, discord_id, username, avatar, created_at FROM user_profiles ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		if err := rows.Scan(&user.ID, &user.DiscordID, &user.Username, &user.Avatar, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
