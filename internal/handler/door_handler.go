package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/doorman/internal/door"
	"github.com/hitoshi/doorman/internal/middleware"
	"github.com/hitoshi/doorman/internal/model"
)

// DoorServiceInterface はドアハンドラーが必要とするサービスインターフェース。
type DoorServiceInterface interface {
	// Open はドア開錠を判定する。userは匿名の場合nil、codeは未指定の場合空文字列。
	Open(ctx context.Context, doorID string, user *model.User, code string) (*door.OpenResult, error)
	CreateDoor(ctx context.Context, owner *model.User, about *string) (*model.Door, error)
	GetDoor(ctx context.Context, doorID string) (*model.Door, error)
	GrantPermission(ctx context.Context, actor *model.User, doorID, userID string, canEdit, canOpen bool) (*model.DoorPermission, error)
	RevokePermission(ctx context.Context, actor *model.User, doorID, userID string) error
	ListPermissions(ctx context.Context, actor *model.User, doorID string) ([]*model.DoorPermission, error)
	GetPermission(ctx context.Context, actor *model.User, doorID, userID string) (*model.DoorPermission, error)
	ListAccessHistory(ctx context.Context, doorID string, userID *string) ([]*model.AccessRecord, error)
}

// DoorHandler はドア管理と開錠のHTTPハンドラー。
type DoorHandler struct {
	service DoorServiceInterface
}

// NewDoorHandler はDoorHandlerを生成する。
func NewDoorHandler(service DoorServiceInterface) *DoorHandler {
	return &DoorHandler{
		service: service,
	}
}

// createDoorRequest はドア作成リクエストのボディ。
type createDoorRequest struct {
	About *string `json:"about"`
}

// grantPermissionRequest は権限付与リクエストのボディ。
type grantPermissionRequest struct {
	CanEdit bool `json:"can_edit"`
	CanOpen bool `json:"can_open"`
}

// doorResponse はドア情報のAPIレスポンス。
type doorResponse struct {
	ID        string    `json:"id"`
	About     *string   `json:"about"`
	OwnerID   *string   `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// permissionResponse はドア権限のAPIレスポンス。
type permissionResponse struct {
	DoorID  string `json:"door_id"`
	UserID  string `json:"user_id"`
	CanEdit bool   `json:"can_edit"`
	CanOpen bool   `json:"can_open"`
}

// openResponse は開錠判定のAPIレスポンス。
// methodは許可時のみ、reasonは拒否時のみ設定される。
type openResponse struct {
	Opened bool   `json:"opened"`
	Method string `json:"method,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// accessRecordResponse はアクセス履歴のAPIレスポンス。
type accessRecordResponse struct {
	ID         string    `json:"id"`
	DoorID     string    `json:"door_id"`
	UserID     *string   `json:"user_id"`
	AccessedAt time.Time `json:"accessed_at"`
}

// CreateDoor はドア作成を処理する。作成者が所有者になる。
// POST /api/v1/doors
func (h *DoorHandler) CreateDoor(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createDoorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	d, err := h.service.CreateDoor(r.Context(), user, req.About)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toDoorResponse(d))
}

// GetDoor はドア詳細を取得する。
// GET /api/v1/doors/{id}
func (h *DoorHandler) GetDoor(w http.ResponseWriter, r *http.Request) {
	doorID := chi.URLParam(r, "id")

	d, err := h.service.GetDoor(r.Context(), doorID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toDoorResponse(d))
}

// OpenDoor は開錠判定を処理する。
// コード経路が先に評価され、失敗時は権限経路に落ちる。
// 拒否時は理由カテゴリに応じて401（未認証）または403（権限なし）を返す。
// GET /api/v1/doors/{id}/open?code=xxx
func (h *DoorHandler) OpenDoor(w http.ResponseWriter, r *http.Request) {
	doorID := chi.URLParam(r, "id")
	code := r.URL.Query().Get("code")
	user := middleware.OptionalUserFromContext(r.Context())

	result, err := h.service.Open(r.Context(), doorID, user, code)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !result.Opened {
		w.WriteHeader(denyReasonToHTTPStatus(result.Reason))
	}
	json.NewEncoder(w).Encode(openResponse{
		Opened: result.Opened,
		Method: string(result.Method),
		Reason: string(result.Reason),
	})
}

// denyReasonToHTTPStatus は開錠拒否の理由カテゴリをHTTPステータスに変換する。
// 未認証は401、コード不正・使用済みと権限なしは403。
func denyReasonToHTTPStatus(reason door.DenyReason) int {
	if reason == door.DenyNoCodeAndUnauthenticated {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

// ListPermissions はドアの全権限行を返す。
// 所有者または編集権限保持者のみ参照できる。
// GET /api/v1/doors/{id}/permissions
func (h *DoorHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	doorID := chi.URLParam(r, "id")

	perms, err := h.service.ListPermissions(r.Context(), user, doorID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]permissionResponse, len(perms))
	for i, p := range perms {
		results[i] = toPermissionResponse(p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// GetPermission は(door, user)の権限行を返す。
// GET /api/v1/doors/{id}/permissions/{userID}
func (h *DoorHandler) GetPermission(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	doorID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userID")

	perm, err := h.service.GetPermission(r.Context(), user, doorID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPermissionResponse(perm))
}

// GrantPermission はドア権限を付与または更新する。
// PUT /api/v1/doors/{id}/permissions/{userID}
func (h *DoorHandler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	doorID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userID")

	var req grantPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	perm, err := h.service.GrantPermission(r.Context(), user, doorID, userID, req.CanEdit, req.CanOpen)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPermissionResponse(perm))
}

// RevokePermission はドア権限を削除する。
// DELETE /api/v1/doors/{id}/permissions/{userID}
func (h *DoorHandler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	doorID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userID")

	if err := h.service.RevokePermission(r.Context(), user, doorID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAccessHistory はドアのアクセス履歴を挿入順で返す。
// GET /api/v1/doors/{id}/access_history
func (h *DoorHandler) ListAccessHistory(w http.ResponseWriter, r *http.Request) {
	doorID := chi.URLParam(r, "id")

	records, err := h.service.ListAccessHistory(r.Context(), doorID, nil)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeAccessHistory(w, records)
}

// ListAccessHistoryByUser は特定ユーザーに絞ったアクセス履歴を返す。
// GET /api/v1/doors/{id}/access_history/{userID}
func (h *DoorHandler) ListAccessHistoryByUser(w http.ResponseWriter, r *http.Request) {
	doorID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userID")

	records, err := h.service.ListAccessHistory(r.Context(), doorID, &userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeAccessHistory(w, records)
}

func writeAccessHistory(w http.ResponseWriter, records []*model.AccessRecord) {
	results := make([]accessRecordResponse, len(records))
	for i, rec := range records {
		results[i] = accessRecordResponse{
			ID:         rec.ID,
			DoorID:     rec.DoorID,
			UserID:     rec.UserID,
			AccessedAt: rec.AccessedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// toDoorResponse はドメインのDoorをAPIレスポンス型に変換する。
func toDoorResponse(d *model.Door) doorResponse {
	return doorResponse{
		ID:        d.ID,
		About:     d.About,
		OwnerID:   d.OwnerID,
		CreatedAt: d.CreatedAt,
	}
}

// toPermissionResponse はドメインのDoorPermissionをAPIレスポンス型に変換する。
func toPermissionResponse(p *model.DoorPermission) permissionResponse {
	return permissionResponse{
		DoorID:  p.DoorID,
		UserID:  p.UserID,
		CanEdit: p.CanEdit,
		CanOpen: p.CanOpen,
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
// レスポンス本文の組み立てはミドルウェア側の共通実装に委譲する。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodePermissionDenied:
		return http.StatusForbidden
	case model.ErrCodeDoorNotFound, model.ErrCodeUserNotFound, model.ErrCodeCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidExpiry:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
