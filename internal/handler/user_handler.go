package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/doorman/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
// repository.UserRepositoryがそのまま満たす。
type UserServiceInterface interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
}

// OwnedDoorLister はユーザーの所有ドア一覧取得のインターフェース。
type OwnedDoorLister interface {
	ListOwnedDoors(ctx context.Context, ownerID string) ([]*model.Door, error)
}

// UserHandler はユーザー参照のHTTPハンドラー。
type UserHandler struct {
	service    UserServiceInterface
	doorLister OwnedDoorLister
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, doorLister OwnedDoorLister) *UserHandler {
	return &UserHandler{
		service:    service,
		doorLister: doorLister,
	}
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID        string    `json:"id"`
	DiscordID string    `json:"discord_id"`
	Username  string    `json:"username"`
	Avatar    *string   `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

// ListUsers は全ユーザーを返す。
// GET /api/v1/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]userResponse, len(users))
	for i, u := range users {
		results[i] = toUserResponse(u)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// GetUser はユーザー詳細を返す。
// GET /api/v1/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	user, err := h.service.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(userID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}

// ListOwnedDoors はユーザーが所有するドア一覧を返す。
// GET /api/v1/users/{id}/doors
func (h *UserHandler) ListOwnedDoors(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	user, err := h.service.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(userID))
		return
	}

	doors, err := h.doorLister.ListOwnedDoors(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]doorResponse, len(doors))
	for i, d := range doors {
		results[i] = toDoorResponse(d)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// toUserResponse はドメインのUserをAPIレスポンス型に変換する。
func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		DiscordID: u.DiscordID,
		Username:  u.Username,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}
