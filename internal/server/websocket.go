package server

import (
	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"hikyaku/internal/hub"
)

// handleWebSocket は接続をアップグレードし、切断されるまで受信を続ける
func (s *Server) handleWebSocket(c *gin.Context) error {
	if !verify(c, s.hooks.WebSocketVerifiers, s.hooks.OnWebSocketVerificationFailed) {
		return nil
	}

	ws, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.config.WebSocket.OriginPatterns,
	})
	if err != nil {
		// Accept がエラーレスポンスを書き込み済み
		s.logger.Warn("WebSocket のハンドシェイクに失敗しました", "path", c.Request.URL.Path, "error", err)
		return nil
	}
	defer ws.CloseNow()

	conn := hub.NewConn(ws)
	s.hub.Register(conn)

	if s.hooks.OnWebSocketConnected != nil {
		s.hooks.OnWebSocketConnected(conn)
	}

	err = conn.ReadLoop(c.Request.Context(), s.hooks.OnWebSocketMessage)
	s.logger.Debug("WebSocket の受信を終了しました", "conn", conn.ID(), "state", conn.State().String(), "reason", err)
	return nil
}
