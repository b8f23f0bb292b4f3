// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, authorization, validation, door, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeDoorNotFound     = "DOOR_NOT_FOUND"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeCodeNotFound     = "CODE_NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInvalidExpiry    = "INVALID_EXPIRY"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewDoorNotFoundError はドア未検出エラーを生成する。
func NewDoorNotFoundError(doorID string) *APIError {
	return &APIError{
		Code:     ErrCodeDoorNotFound,
		Message:  fmt.Sprintf("指定されたドアが見つかりません: %s", doorID),
		Category: "door",
		Action:   "ドアIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", userID),
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewCodeNotFoundError はドアコード未検出エラーを生成する。
func NewCodeNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeCodeNotFound,
		Message:  "指定されたドアコードが見つかりません。",
		Category: "door",
		Action:   "コードを確認してください。",
	}
}

// NewPermissionDeniedError は権限不足エラーを生成する。
// 他ユーザーの権限内容は漏らさない。
func NewPermissionDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodePermissionDenied,
		Message:  "この操作を行う権限がありません。",
		Category: "authorization",
		Action:   "ドアの所有者または編集権限を持つユーザーに依頼してください。",
	}
}

// NewInvalidRequestError はリクエスト解析エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidExpiryError は無効な有効期限エラーを生成する。
func NewInvalidExpiryError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidExpiry,
		Message:  "有効期限が無効です。",
		Category: "validation",
		Action:   "有効期限には未来の時刻を指定してください。",
	}
}
