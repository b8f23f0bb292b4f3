package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/doorman/internal/model"
)

// --- モック定義 ---

// mockCodeService はCodeServiceInterfaceのモック実装。
type mockCodeService struct {
	issueCodeFn func(ctx context.Context, actor *model.User, doorID string, expiresAt *time.Time) (*model.DoorCode, error)
	getCodeFn   func(ctx context.Context, actor *model.User, code string) (*model.DoorCode, error)
}

func (m *mockCodeService) IssueCode(ctx context.Context, actor *model.User, doorID string, expiresAt *time.Time) (*model.DoorCode, error) {
	return m.issueCodeFn(ctx, actor, doorID, expiresAt)
}
func (m *mockCodeService) GetCode(ctx context.Context, actor *model.User, code string) (*model.DoorCode, error) {
	return m.getCodeFn(ctx, actor, code)
}

// --- POST /api/v1/codes テスト ---

func TestCodeHandler_IssueCode_Success(t *testing.T) {
	svc := &mockCodeService{
		issueCodeFn: func(ctx context.Context, actor *model.User, doorID string, expiresAt *time.Time) (*model.DoorCode, error) {
			if actor.ID != "user-owner" {
				t.Errorf("actor = %q, want %q", actor.ID, "user-owner")
			}
			if doorID != "door-1" {
				t.Errorf("doorID = %q, want %q", doorID, "door-1")
			}
			if expiresAt != nil {
				t.Errorf("expected nil expiry, got %v", expiresAt)
			}
			return &model.DoorCode{
				Code:      "code-xyz",
				DoorID:    doorID,
				CreatorID: actor.ID,
				CreatedAt: time.Now(),
			}, nil
		},
	}

	h := NewCodeHandler(svc)

	body := `{"door_id": "door-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/codes", bytes.NewBufferString(body))
	req = withUser(req, &model.User{ID: "user-owner"})
	w := httptest.NewRecorder()

	h.IssueCode(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var resp codeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "code-xyz" {
		t.Errorf("Code = %q, want %q", resp.Code, "code-xyz")
	}
	if resp.Used {
		t.Error("expected used=false")
	}
}

func TestCodeHandler_IssueCode_WithExpiry(t *testing.T) {
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	svc := &mockCodeService{
		issueCodeFn: func(ctx context.Context, actor *model.User, doorID string, expiresAt *time.Time) (*model.DoorCode, error) {
			if expiresAt == nil || !expiresAt.Equal(expiry) {
				t.Errorf("expiresAt = %v, want %v", expiresAt, expiry)
			}
			return &model.DoorCode{Code: "code-xyz", DoorID: doorID, CreatorID: actor.ID, ExpiresAt: expiresAt}, nil
		},
	}

	h := NewCodeHandler(svc)

	body, _ := json.Marshal(issueCodeRequest{DoorID: "door-1", ExpiresAt: &expiry})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/codes", bytes.NewBuffer(body))
	req = withUser(req, &model.User{ID: "user-owner"})
	w := httptest.NewRecorder()

	h.IssueCode(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestCodeHandler_IssueCode_MissingDoorID(t *testing.T) {
	h := NewCodeHandler(&mockCodeService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/codes", bytes.NewBufferString(`{}`))
	req = withUser(req, &model.User{ID: "user-owner"})
	w := httptest.NewRecorder()

	h.IssueCode(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCodeHandler_IssueCode_PastExpiry(t *testing.T) {
	svc := &mockCodeService{
		issueCodeFn: func(ctx context.Context, actor *model.User, doorID string, expiresAt *time.Time) (*model.DoorCode, error) {
			return nil, model.NewInvalidExpiryError()
		},
	}

	h := NewCodeHandler(svc)

	body := `{"door_id": "door-1", "expires_at": "2020-01-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/codes", bytes.NewBufferString(body))
	req = withUser(req, &model.User{ID: "user-owner"})
	w := httptest.NewRecorder()

	h.IssueCode(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeInvalidExpiry {
		t.Errorf("code = %q, want %q", resp["code"], model.ErrCodeInvalidExpiry)
	}
}

func TestCodeHandler_IssueCode_Unauthenticated(t *testing.T) {
	h := NewCodeHandler(&mockCodeService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/codes", bytes.NewBufferString(`{"door_id": "door-1"}`))
	w := httptest.NewRecorder()

	h.IssueCode(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// --- GET /api/v1/codes/{code} テスト ---

func TestCodeHandler_GetCode_Success(t *testing.T) {
	svc := &mockCodeService{
		getCodeFn: func(ctx context.Context, actor *model.User, code string) (*model.DoorCode, error) {
			if code != "code-xyz" {
				t.Errorf("code = %q, want %q", code, "code-xyz")
			}
			return &model.DoorCode{Code: code, DoorID: "door-1", CreatorID: "user-owner", Used: true}, nil
		},
	}

	h := NewCodeHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/codes/code-xyz", nil)
	req = withChiURLParam(req, "code", "code-xyz")
	req = withUser(req, &model.User{ID: "user-owner"})
	w := httptest.NewRecorder()

	h.GetCode(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp codeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Used {
		t.Error("expected used=true")
	}
}

func TestCodeHandler_GetCode_NotFound(t *testing.T) {
	svc := &mockCodeService{
		getCodeFn: func(ctx context.Context, actor *model.User, code string) (*model.DoorCode, error) {
			return nil, model.NewCodeNotFoundError()
		},
	}

	h := NewCodeHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/codes/code-missing", nil)
	req = withChiURLParam(req, "code", "code-missing")
	req = withUser(req, &model.User{ID: "user-owner"})
	w := httptest.NewRecorder()

	h.GetCode(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCodeHandler_GetCode_Forbidden(t *testing.T) {
	svc := &mockCodeService{
		getCodeFn: func(ctx context.Context, actor *model.User, code string) (*model.DoorCode, error) {
			return nil, model.NewPermissionDeniedError()
		},
	}

	h := NewCodeHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/codes/code-xyz", nil)
	req = withChiURLParam(req, "code", "code-xyz")
	req = withUser(req, &model.User{ID: "user-stranger"})
	w := httptest.NewRecorder()

	h.GetCode(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
