package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSendTimeout は1接続あたりの送信タイムアウト
const DefaultSendTimeout = 5 * time.Second

// Hub は接続中のクライアントの集合
type Hub struct {
	mu          sync.Mutex
	peers       map[string]Peer
	logger      *slog.Logger
	sendTimeout time.Duration
}

// New は新しい Hub を作成する
func New(logger *slog.Logger, sendTimeout time.Duration) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Hub{
		peers:       make(map[string]Peer),
		logger:      logger.With("component", "ws"),
		sendTimeout: sendTimeout,
	}
}

// Register は接続を追加する
func (h *Hub) Register(p Peer) {
	h.mu.Lock()
	h.peers[p.ID()] = p
	size := len(h.peers)
	h.mu.Unlock()

	h.logger.Info("WebSocket クライアントが接続しました", "conn", p.ID(), "clients", size)
}

// Len は管理している接続数を返す
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Prune は終了状態の接続を取り除き、残った接続を返す
func (h *Hub) Prune() []Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pruneLocked()
}

// pruneLocked は終了状態の接続を削除する（ロック済み前提）
func (h *Hub) pruneLocked() []Peer {
	alive := make([]Peer, 0, len(h.peers))
	for id, p := range h.peers {
		if p.State().Terminal() {
			delete(h.peers, id)
			continue
		}
		alive = append(alive, p)
	}
	return alive
}

// Broadcast は生存している全接続へメッセージを送る
// 送信は接続ごとに独立して行われ、送信を試みた接続数を返す
func (h *Hub) Broadcast(msg []byte) int {
	h.mu.Lock()
	alive := h.pruneLocked()
	h.mu.Unlock()

	for _, p := range alive {
		go h.send(p, msg)
	}
	return len(alive)
}

// closer は Close ハンドシェイクを行える接続
type closer interface {
	Close(reason string) error
}

// CloseAll は全接続の登録を解除し、生存している接続を閉じる
func (h *Hub) CloseAll(reason string) {
	h.mu.Lock()
	peers := make([]Peer, 0, len(h.peers))
	for id, p := range h.peers {
		peers = append(peers, p)
		delete(h.peers, id)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range peers {
		c, ok := p.(closer)
		if !ok || p.State().Terminal() {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Close(reason); err != nil {
				h.logger.Debug("WebSocket の切断に失敗しました", "conn", p.ID(), "error", err)
			}
		}()
	}
	wg.Wait()

	if len(peers) > 0 {
		h.logger.Info("WebSocket クライアントを切断しました", "clients", len(peers))
	}
}

// send は1接続へ送信する
func (h *Hub) send(p Peer, msg []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), h.sendTimeout)
	defer cancel()

	if err := p.Send(ctx, msg); err != nil {
		h.logger.Warn("WebSocket への送信に失敗しました", "conn", p.ID(), "error", err)
	}
}
