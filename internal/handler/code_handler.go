package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/doorman/internal/middleware"
	"github.com/hitoshi/doorman/internal/model"
)

// CodeServiceInterface はドアコードハンドラーが必要とするサービスインターフェース。
type CodeServiceInterface interface {
	IssueCode(ctx context.Context, actor *model.User, doorID string, expiresAt *time.Time) (*model.DoorCode, error)
	GetCode(ctx context.Context, actor *model.User, code string) (*model.DoorCode, error)
}

// CodeHandler はワンタイムコード管理のHTTPハンドラー。
type CodeHandler struct {
	service CodeServiceInterface
}

// NewCodeHandler はCodeHandlerを生成する。
func NewCodeHandler(service CodeServiceInterface) *CodeHandler {
	return &CodeHandler{
		service: service,
	}
}

// issueCodeRequest はコード発行リクエストのボディ。
// expires_atはRFC 3339形式。省略時は無期限。
type issueCodeRequest struct {
	DoorID    string     `json:"door_id"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// codeResponse はドアコードのAPIレスポンス。
type codeResponse struct {
	Code      string     `json:"code"`
	DoorID    string     `json:"door_id"`
	CreatorID string     `json:"creator_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	Used      bool       `json:"used"`
}

// IssueCode はワンタイムコードの発行を処理する。
// POST /api/v1/codes
func (h *CodeHandler) IssueCode(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req issueCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	if req.DoorID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	code, err := h.service.IssueCode(r.Context(), user, req.DoorID, req.ExpiresAt)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toCodeResponse(code))
}

// GetCode はコード詳細を返す。対象ドアの管理者のみ参照できる。
// GET /api/v1/codes/{code}
func (h *CodeHandler) GetCode(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	codeValue := chi.URLParam(r, "code")

	code, err := h.service.GetCode(r.Context(), user, codeValue)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toCodeResponse(code))
}

// toCodeResponse はドメインのDoorCodeをAPIレスポンス型に変換する。
func toCodeResponse(c *model.DoorCode) codeResponse {
	return codeResponse{
		Code:      c.Code,
		DoorID:    c.DoorID,
		CreatorID: c.CreatorID,
		CreatedAt: c.CreatedAt,
		ExpiresAt: c.ExpiresAt,
		Used:      c.Used,
	}
}
