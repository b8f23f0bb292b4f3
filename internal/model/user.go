// Package model はドメインモデルを定義する。
package model

import "time"

// User はDiscordアカウントに紐付くローカルユーザーを表す。
// DiscordIDは外部IdPが発行する安定した識別子であり、作成後は変更されない。
// 表示属性（Username, Avatar）は初回ログイン時の値を保持し、
// 再ログイン時には更新しない（初回書き込み優先）。
type User struct {
	ID        string
	DiscordID string
	Username  string
	Avatar    *string // Discordのアバターハッシュ。未設定の場合はnil
	CreatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// IDは推測不能な不透明トークンで、Cookieの値としてそのまま使用する。
// セッションの破棄はUserには影響しない。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
