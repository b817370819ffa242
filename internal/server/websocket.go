package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// upgrader はWebSocketへのアップグレード設定
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 同一ホストのフロントエンドからの接続を想定
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	// writeWait はイベント書き込みのタイムアウト
	writeWait = 10 * time.Second

	// pingInterval は接続維持のためのping間隔
	pingInterval = 30 * time.Second
)

// GetSessionEvents は統合イベントのWebSocketストリーミングエンドポイントの実装
// 接続中のクライアントへ、状態・アクティビティ・能力・割り込み・回転の
// 変化をJSONで配信する
func (h *Handler) GetSessionEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocketへのアップグレードに失敗しました: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.manager.Subscribe()
	defer cancel()

	// クライアントの切断を検知する読み取りループ
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
