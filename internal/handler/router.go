package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/doorman/internal/middleware"
)

// DBPinger はヘルスチェックに必要なデータベース疎通確認のインターフェース。
// *sql.DBがそのまま満たす。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	IdentityResolver  middleware.IdentityResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusRecorder    middleware.HTTPStatusRecorder

	// 運用エンドポイント
	MetricsHandler http.Handler
	DB             DBPinger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドア・コード
	DoorService DoorServiceInterface
	CodeService CodeServiceInterface

	// ユーザー
	UserService     UserServiceInterface
	OwnedDoorLister OwnedDoorLister
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → (Session → RateLimit)
//
// セッションとレート制限はルートグループごとに異なる:
//   - 公開の参照系: 任意セッション + API全般リミッター
//   - 開錠: 任意セッション + 開錠専用リミッター（コード探索対策で厳しめ）
//   - 管理系: 必須セッション + API全般リミッター
//
// 認証ルート（/auth/*）と運用エンドポイントはレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	doorHandler := NewDoorHandler(deps.DoorService)
	codeHandler := NewCodeHandler(deps.CodeService)
	userHandler := NewUserHandler(deps.UserService, deps.OwnedDoorLister)
	wsHandler := NewWSHandler()

	optionalSession := middleware.NewOptionalSessionMiddleware(deps.IdentityResolver)
	requireSession := middleware.NewRequireSessionMiddleware(deps.IdentityResolver)

	// --- 運用エンドポイント ---

	r.Get("/health", newHealthHandler(deps.DB))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// 認証ルート（OAuthフロー）
		r.Route("/auth", func(r chi.Router) {
			r.Get("/discord", authHandler.Login)
			r.Get("/authorized", authHandler.Callback)
			r.Post("/logout", authHandler.Logout)
		})

		// WebSocketデモ
		r.Get("/ws", wsHandler.Serve)

		// --- 公開の参照系ルート ---
		r.Group(func(r chi.Router) {
			r.Use(optionalSession)
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/", indexHandler)

			r.Route("/doors/{id}", func(r chi.Router) {
				r.Get("/", doorHandler.GetDoor)
				r.Get("/access_history", doorHandler.ListAccessHistory)
				r.Get("/access_history/{userID}", doorHandler.ListAccessHistoryByUser)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.ListUsers)
				r.Get("/@me", authHandler.Me)
				r.Get("/{id}", userHandler.GetUser)
				r.Get("/{id}/doors", userHandler.ListOwnedDoors)
			})
		})

		// --- 開錠ルート ---
		// 匿名でもコードがあれば使える。専用の厳しいレート制限を持つ。
		r.Group(func(r chi.Router) {
			r.Use(optionalSession)
			r.Use(deps.RateLimiter.OpenMiddleware())

			r.Get("/doors/{id}/open", doorHandler.OpenDoor)
		})

		// --- 管理系ルート（要認証） ---
		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Post("/doors", doorHandler.CreateDoor)

			r.Route("/doors/{id}/permissions", func(r chi.Router) {
				r.Get("/", doorHandler.ListPermissions)
				r.Get("/{userID}", doorHandler.GetPermission)
				r.Put("/{userID}", doorHandler.GrantPermission)
				r.Delete("/{userID}", doorHandler.RevokePermission)
			})

			r.Route("/codes", func(r chi.Router) {
				r.Post("/", codeHandler.IssueCode)
				r.Get("/{code}", codeHandler.GetCode)
			})
		})
	})

	return r
}

// indexHandler はログイン状態に応じた案内文を返す。
// GET /api/v1/
func indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if user := middleware.OptionalUserFromContext(r.Context()); user != nil {
		fmt.Fprintf(w, "Hey %s! You're logged in!\nLog out with `/api/v1/auth/logout`.\n", user.Username)
		return
	}
	fmt.Fprint(w, "You're not logged in.\nVisit `/api/v1/auth/discord` to do so.\n")
}

// newHealthHandler はデータベース疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func newHealthHandler(db DBPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := "ok"
		statusCode := http.StatusOK
		if db == nil {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		} else if err := db.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
