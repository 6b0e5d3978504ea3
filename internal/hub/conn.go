package hub

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// State は接続の生存状態
type State int32

const (
	StateOpen          State = iota // 通信可能
	StateCloseSent                  // こちらから Close を送信済み
	StateCloseReceived              // 相手から Close を受信済み
	StateClosed                     // 正常に閉じた
	StateAborted                    // 異常終了
)

// String は状態の名前を返す
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCloseSent:
		return "close_sent"
	case StateCloseReceived:
		return "close_received"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal は送信対象から外すべき状態かどうかを返す
func (s State) Terminal() bool {
	return s != StateOpen
}

// ErrClosed は終了状態の接続へ送信しようとした場合のエラー
var ErrClosed = errors.New("websocket connection is closed")

// Peer は Hub が管理する接続
type Peer interface {
	ID() string
	State() State
	Send(ctx context.Context, msg []byte) error
}

// MessageFunc は受信したメッセージを処理する
type MessageFunc func(conn *Conn, typ websocket.MessageType, data []byte)

// Conn は coder/websocket の接続と生存状態をまとめたもの
type Conn struct {
	id    string
	ws    *websocket.Conn
	state atomic.Int32
}

// NewConn はアップグレード済みの接続を包む
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{
		id: uuid.New().String(),
		ws: ws,
	}
}

// ID は接続の識別子を返す
func (c *Conn) ID() string {
	return c.id
}

// State は現在の状態を返す
func (c *Conn) State() State {
	return State(c.state.Load())
}

// transition は Open からのみ状態を進める
func (c *Conn) transition(next State) {
	c.state.CompareAndSwap(int32(StateOpen), int32(next))
}

// Send はテキストフレームを送信する
func (c *Conn) Send(ctx context.Context, msg []byte) error {
	if c.State().Terminal() {
		return ErrClosed
	}
	if err := c.ws.Write(ctx, websocket.MessageText, msg); err != nil {
		c.transition(StateAborted)
		return err
	}
	return nil
}

// Close は正常終了のハンドシェイクを行う
func (c *Conn) Close(reason string) error {
	c.transition(StateCloseSent)
	err := c.ws.Close(websocket.StatusNormalClosure, reason)
	if err != nil {
		c.state.Store(int32(StateAborted))
		return err
	}
	c.state.Store(int32(StateClosed))
	return nil
}

// ReadLoop は接続が終了するまでメッセージを読み続ける
// Close フレームの受信と Ping/Pong はこのループで処理される
func (c *Conn) ReadLoop(ctx context.Context, fn MessageFunc) error {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.transition(StateCloseReceived)
				c.state.CompareAndSwap(int32(StateCloseReceived), int32(StateClosed))
			} else {
				c.transition(StateAborted)
			}
			return err
		}
		if fn != nil {
			fn(c, typ, data)
		}
	}
}
