package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsMessageCount はデモ接続で送信するサーバーメッセージ数。
const wsMessageCount = 20

// WSHandler は疎通確認用のWebSocketデモハンドラー。
// 固定数のサーバーメッセージを送信してからクローズする。業務ロジックは持たない。
type WSHandler struct {
	upgrader websocket.Upgrader
}

// NewWSHandler はWSHandlerを生成する。
// CORSはHTTP層のミドルウェアで制御するため、Upgrade時のOriginチェックは行わない。
func NewWSHandler() *WSHandler {
	return &WSHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve はWebSocket接続を処理する。
// GET /api/v1/ws
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	slog.Info("websocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("user_agent", r.UserAgent()),
	)

	for i := 0; i < wsMessageCount; i++ {
		msg := fmt.Sprintf("Server message %d ...", i)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			slog.Warn("websocket write failed",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("error", err.Error()),
			)
			return
		}
		time.Sleep(300 * time.Millisecond)
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Goodbye")
	if err := conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)); err != nil {
		slog.Warn("websocket close failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
	}
}
