package server

import (
	"github.com/gin-gonic/gin"

	"hikyaku/internal/hub"
)

// VerifyFunc はリクエストを受け入れるかどうかを判定する
type VerifyFunc func(c *gin.Context) bool

// Hooks はサーバーの振る舞いを差し替える拡張ポイント
// 未設定のフィールドは何もしない
type Hooks struct {
	// 検証（1つでも false なら失敗時処理を呼んで打ち切る）
	GetVerifiers       []VerifyFunc
	PostVerifiers      []VerifyFunc
	WebSocketVerifiers []VerifyFunc

	// 検証に失敗したときの処理
	OnGetVerificationFailed       gin.HandlerFunc
	OnPostVerificationFailed      gin.HandlerFunc
	OnWebSocketVerificationFailed gin.HandlerFunc

	// 設定されていれば GET / POST の処理をすべて委ねる
	CustomGet  gin.HandlerFunc
	CustomPost gin.HandlerFunc

	// WebSocket 接続の登録後に呼ばれる
	OnWebSocketConnected func(conn *hub.Conn)
	// WebSocket で受信したメッセージごとに呼ばれる
	OnWebSocketMessage hub.MessageFunc
}

// verify は検証関数を順に実行し、失敗したら失敗時処理を呼ぶ
func verify(c *gin.Context, verifiers []VerifyFunc, onFailed gin.HandlerFunc) bool {
	for _, v := range verifiers {
		if v(c) {
			continue
		}
		if onFailed != nil {
			onFailed(c)
		}
		return false
	}
	return true
}
