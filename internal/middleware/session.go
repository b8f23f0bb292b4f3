// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/doorman/internal/model"
)

// SessionCookieName はセッショントークンを格納するCookie名。
const SessionCookieName = "SESSION"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// IdentityResolver はセッショントークンからユーザーを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
// 未知・期限切れのトークンは(nil, nil)を返し、エラーはストレージ障害のみ。
type IdentityResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (*model.User, error)
}

// NewRequireSessionMiddleware はSESSION Cookieを検証し、認証済みユーザーを
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない、またはセッションが無効なリクエストには401を返す。
func NewRequireSessionMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveRequestUser(resolver, r)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalSessionMiddleware はSESSION Cookieがあれば検証してユーザーを
// コンテキストに注入し、なければ匿名のままリクエストを通すミドルウェアを返す。
// 無効なセッションも匿名として扱う（開錠エンドポイントはコードだけで使えるため）。
func NewOptionalSessionMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveRequestUser(resolver, r)
			if err != nil {
				// ストレージ障害でも匿名経路は生かす。コード開錠まで道連れにしない。
				slog.Error("failed to resolve session, continuing as anonymous",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveRequestUser はリクエストのSESSION Cookieからユーザーを解決する。
// Cookieがない・セッションが無効な場合は(nil, nil)を返す。
func resolveRequestUser(resolver IdentityResolver, r *http.Request) (*model.User, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return resolver.ResolveSession(r.Context(), cookie.Value)
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// OptionalUserFromContext は認証済みユーザーを返し、匿名の場合はnilを返す。
func OptionalUserFromContext(ctx context.Context) *model.User {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok {
		return nil
	}
	return user
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
