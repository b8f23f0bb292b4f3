package model

import "time"

// Door は開閉対象のドアを表す。
// OwnerIDはユーザーへの弱い参照であり、ユーザー削除時もドアは残る。
type Door struct {
	ID        string
	About     *string
	OwnerID   *string
	CreatedAt time.Time
}

// DoorPermission はドアに対する常設の権限付与を表す。
// (DoorID, UserID)を複合キーとし、同一ペアに対して最大1行しか存在しない。
type DoorPermission struct {
	DoorID  string
	UserID  string
	CanEdit bool
	CanOpen bool
}

// DoorCode は一度だけ使えるドア開錠コードを表す。
// Usedはfalse→trueに一度だけ遷移する消費型の資源であり、
// 遷移はストレージ層の条件付きUPDATEで原子的に行う。
type DoorCode struct {
	Code      string
	DoorID    string
	CreatorID string
	CreatedAt time.Time
	ExpiresAt *time.Time // nilの場合は無期限
	Used      bool
}

// AccessRecord は開錠成功の監査ログエントリを表す。
// 追記のみで、作成後に変更・削除されることはない。
// コードによる匿名開錠の場合、UserIDはnilになる。
type AccessRecord struct {
	ID         string
	DoorID     string
	UserID     *string
	AccessedAt time.Time
}
