package idempotence

import (
	"strings"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
)

const (
	// DefaultTTL はレコードの保持期間
	DefaultTTL = 5 * time.Minute

	// DefaultHeader は冪等キーを運ぶヘッダー名
	DefaultHeader = "X-Idempotency-Key"
)

// Record は冪等キーに対応する保存済みレスポンス
type Record struct {
	ID        uuid.UUID
	Response  []byte
	ExpiresAt time.Time
}

// Cache は冪等キーをキーにしたレスポンスキャッシュ
type Cache struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
	ttl     time.Duration
	clock   clock.Clock
}

// Option は Cache の設定を変更する
type Option func(*Cache)

// WithTTL は保持期間を設定する
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock は時刻の取得元を差し替える
func WithClock(clk clock.Clock) Option {
	return func(c *Cache) {
		c.clock = clk
	}
}

// New は新しい Cache を作成する
func New(opts ...Option) *Cache {
	c := &Cache{
		records: make(map[uuid.UUID]*Record),
		ttl:     DefaultTTL,
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseID はヘッダー値を冪等キーとして解釈する
// 正しいUUIDでない場合、そのリクエストでは冪等性を無効にする
func ParseID(value string) (uuid.UUID, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(value)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// Check は保存済みレスポンスを返す
func (c *Cache) Check(id uuid.UUID) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeLocked(c.clock.Now())

	record, ok := c.records[id]
	if !ok {
		return nil, false
	}
	return record.Response, true
}

// Store は成功レスポンスを保存する
// 既存のレコードがあればレスポンスを置き換えて期限を延長する
func (c *Cache) Store(id uuid.UUID, response []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.purgeLocked(now)

	stored := append([]byte(nil), response...)
	if record, ok := c.records[id]; ok {
		record.Response = stored
		record.ExpiresAt = now.Add(c.ttl)
		return
	}

	c.records[id] = &Record{
		ID:        id,
		Response:  stored,
		ExpiresAt: now.Add(c.ttl),
	}
}

// Len は保持しているレコード数を返す（期限切れを含む）
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// purgeLocked は期限切れのレコードを削除する（ロック済み前提）
func (c *Cache) purgeLocked(now time.Time) {
	for id, record := range c.records {
		if !now.Before(record.ExpiresAt) {
			delete(c.records, id)
		}
	}
}
