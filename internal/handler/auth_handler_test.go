package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/doorman/internal/middleware"
	"github.com/hitoshi/doorman/internal/model"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	resolveSessionFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) ResolveSession(ctx context.Context, sessionID string) (*model.User, error) {
	if m.resolveSessionFn != nil {
		return m.resolveSessionFn(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "https://discord.com/oauth2/authorize?state=" + state
}
func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	return m.handleCallbackFn(ctx, code)
}
func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}
func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		BaseURL:       "http://localhost:5173",
		CookieSecure:  false,
		SessionMaxAge: 86400,
	}
}

// findCookie はレスポンスから指定名のSet-Cookieを探すヘルパー。
func findCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- テスト ---

// TestAuthHandler_Login はOAuthリダイレクトとstate Cookieの設定を検証する。
func TestAuthHandler_Login(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/discord", nil)
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}

	location := w.Header().Get("Location")
	if !strings.HasPrefix(location, "https://discord.com/") {
		t.Errorf("Location = %q, want discord URL", location)
	}

	stateCookie := findCookie(t, w, oauthStateCookie)
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("expected oauth_state cookie")
	}
	if !stateCookie.HttpOnly {
		t.Error("expected HttpOnly state cookie")
	}
	if !strings.Contains(location, stateCookie.Value) {
		t.Error("expected state value in redirect URL")
	}
}

// TestAuthHandler_Callback_Success はコールバック成功でセッションCookieが
// 設定されることを検証する。
func TestAuthHandler_Callback_Success(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			if code != "auth-code" {
				t.Errorf("code = %q, want %q", code, "auth-code")
			}
			return &model.Session{ID: "session-token", UserID: "user-1"}, nil
		},
	}

	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/authorized?code=auth-code&state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "state-1"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}

	sessionCookie := findCookie(t, w, middleware.SessionCookieName)
	if sessionCookie == nil {
		t.Fatal("expected SESSION cookie")
	}
	if sessionCookie.Value != "session-token" {
		t.Errorf("cookie value = %q, want %q", sessionCookie.Value, "session-token")
	}
	if !sessionCookie.HttpOnly {
		t.Error("expected HttpOnly session cookie")
	}
	if sessionCookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", sessionCookie.SameSite)
	}
	if sessionCookie.Path != "/" {
		t.Errorf("Path = %q, want /", sessionCookie.Path)
	}

	// state Cookieは破棄される
	stateCookie := findCookie(t, w, oauthStateCookie)
	if stateCookie == nil || stateCookie.MaxAge != -1 {
		t.Error("expected oauth_state cookie to be cleared")
	}
}

// TestAuthHandler_Callback_StateMismatch はstate不一致で400が返ることを検証する。
func TestAuthHandler_Callback_StateMismatch(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			t.Error("HandleCallback should not be called on state mismatch")
			return nil, nil
		},
	}

	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/authorized?code=auth-code&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "state-1"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestAuthHandler_Callback_MissingCode は認可コードなしで400が返ることを検証する。
func TestAuthHandler_Callback_MissingCode(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/authorized?state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "state-1"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestAuthHandler_Logout はセッション破棄とCookieクリアを検証する。
func TestAuthHandler_Logout(t *testing.T) {
	loggedOut := ""
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
	}

	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-token"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	if loggedOut != "session-token" {
		t.Errorf("logged out session = %q, want %q", loggedOut, "session-token")
	}

	sessionCookie := findCookie(t, w, middleware.SessionCookieName)
	if sessionCookie == nil || sessionCookie.MaxAge != -1 {
		t.Error("expected SESSION cookie to be cleared")
	}
}

// TestAuthHandler_Logout_NoCookie はCookieなしのログアウトも成功することを検証する。冪等。
func TestAuthHandler_Logout_NoCookie(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			t.Error("Logout should not be called without a cookie")
			return nil
		},
	}

	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
}

// TestAuthHandler_Me はログインユーザー情報の取得を検証する。
// セッション解決はミドルウェアの責務のため、コンテキスト上のユーザーだけを見る。
func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/@me", nil)
	user := &model.User{ID: "user-1", DiscordID: "111", Username: "alice"}
	req = req.WithContext(middleware.ContextWithUser(req.Context(), user))
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "alice") {
		t.Errorf("expected username in body, got %s", w.Body.String())
	}
}

// TestAuthHandler_Me_Anonymous は未認証リクエストで401が返ることを検証する。
// Cookieが付いていてもミドルウェアがユーザーを解決していなければ匿名扱いになる。
func TestAuthHandler_Me_Anonymous(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/@me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "expired-token"})
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
