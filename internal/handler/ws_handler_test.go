package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestWSHandler_UpgradesAndStreamsMessages(t *testing.T) {
	h := NewWSHandler()
	server := httptest.NewServer(http.HandlerFunc(h.Serve))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()

	// 最初の数メッセージだけ読んで内容と連番を確認する
	for i := 0; i < 3; i++ {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read message %d: %v", i, err)
		}
		if msgType != websocket.TextMessage {
			t.Errorf("message type = %d, want TextMessage", msgType)
		}
		if !strings.HasPrefix(string(msg), "Server message") {
			t.Errorf("message = %q, want prefix %q", msg, "Server message")
		}
	}
}

func TestWSHandler_RejectsPlainHTTP(t *testing.T) {
	h := NewWSHandler()
	server := httptest.NewServer(http.HandlerFunc(h.Serve))
	defer server.Close()

	// Upgradeヘッダーなしの通常GETはアップグレードに失敗する
	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("plain GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 {
		t.Errorf("status = %d, want client error for non-websocket request", resp.StatusCode)
	}
}
