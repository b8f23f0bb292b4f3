// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/doorman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindOrCreateByDiscordID はdiscord_idでユーザーを検索し、
	// 存在しなければuserの内容で作成して返す。
	// discord_idのユニーク制約により、同時初回ログインでも行は1つしか作られない。
	// 挿入が競合で落ちた場合は再読込して既存行を返す。
	FindOrCreateByDiscordID(ctx context.Context, user *model.User) (*model.User, error)

	// List は全ユーザーを作成順で返す。
	List(ctx context.Context) ([]*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。
	// 未知・期限切れのトークンはエラーではなくnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	// 冪等であり、存在しないトークンの削除はエラーにならない。
	DeleteByID(ctx context.Context, id string) error
}

// DoorRepository はドアデータの永続化インターフェース。
type DoorRepository interface {
	// Create はドアを作成する。
	Create(ctx context.Context, door *model.Door) error
	// FindByID は指定IDのドアを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Door, error)
	// ListByOwnerID は指定ユーザーが所有するドアを作成順で返す。
	ListByOwnerID(ctx context.Context, ownerID string) ([]*model.Door, error)
}

// PermissionRepository はドア権限の永続化インターフェース。
type PermissionRepository interface {
	// Find は(door_id, user_id)の権限行を取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, doorID, userID string) (*model.DoorPermission, error)
	// ListByDoorID はドアの全権限行を返す。
	ListByDoorID(ctx context.Context, doorID string) ([]*model.DoorPermission, error)
	// Upsert は権限行を作成または更新する。
	// (door_id, user_id)の複合主キーにより同一ペアの行は最大1つに保たれる。
	Upsert(ctx context.Context, perm *model.DoorPermission) error
	// Delete は権限行を削除する。冪等であり、行が存在しなくてもエラーにならない。
	Delete(ctx context.Context, doorID, userID string) error
}

// CodeRepository はワンタイムコードの永続化インターフェース。
type CodeRepository interface {
	// Create はコードを作成する。
	Create(ctx context.Context, code *model.DoorCode) error
	// FindByCode は指定コードを取得する。見つからない場合はnilを返す。
	FindByCode(ctx context.Context, code string) (*model.DoorCode, error)
	// Redeem は指定ドアの未使用・未期限切れコードを原子的に消費する。
	// 条件付きUPDATE1文で実行されるため、同一コードへの同時消費は1回だけ成功する。
	// 消費できなかった場合（未知・使用済み・期限切れ・ドア不一致）はnilを返す。
	Redeem(ctx context.Context, code, doorID string) (*model.DoorCode, error)
}

// AccessRepository はアクセス履歴の永続化インターフェース。
// 追記と読み取りのみを提供し、更新・削除は存在しない。
type AccessRepository interface {
	// Append はアクセス記録を追記する。
	Append(ctx context.Context, rec *model.AccessRecord) error
	// ListByDoorID はドアの全アクセス記録を挿入順で返す。
	ListByDoorID(ctx context.Context, doorID string) ([]*model.AccessRecord, error)
	// ListByDoorAndUser はドアのアクセス記録を指定ユーザーに絞って挿入順で返す。
	ListByDoorAndUser(ctx context.Context, doorID, userID string) ([]*model.AccessRecord, error)
}
