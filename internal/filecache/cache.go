package filecache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// DefaultMaxAge はエントリを保持する時間
const DefaultMaxAge = 30 * time.Minute

// Entry はファイルのハッシュと計算時刻
type Entry struct {
	Path       string
	Hash       string
	ComputedAt time.Time
}

// Cache はパスをキーにしたハッシュキャッシュ
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	maxAge  time.Duration
	clock   clock.Clock
}

// Option は Cache の設定を変更する
type Option func(*Cache)

// WithMaxAge はエントリの保持時間を設定する
func WithMaxAge(maxAge time.Duration) Option {
	return func(c *Cache) {
		if maxAge > 0 {
			c.maxAge = maxAge
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
		entries: make(map[string]Entry),
		maxAge:  DefaultMaxAge,
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute はファイルのハッシュを返す
// キャッシュにない場合はファイル全体を読んで計算し、保存する
func (c *Cache) GetOrCompute(path string) (string, error) {
	c.mu.Lock()
	c.sweepLocked(c.clock.Now())
	entry, ok := c.entries[path]
	c.mu.Unlock()

	if ok {
		return entry.Hash, nil
	}

	hash, err := HashFile(path)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// 計算中に別のリクエストが保存していればそちらを使う
	if existing, ok := c.entries[path]; ok {
		return existing.Hash, nil
	}
	c.entries[path] = Entry{Path: path, Hash: hash, ComputedAt: c.clock.Now()}
	return hash, nil
}

// Lookup はキャッシュ済みのエントリを返す
func (c *Cache) Lookup(path string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked(c.clock.Now())
	entry, ok := c.entries[path]
	return entry, ok
}

// Len は保持しているエントリ数を返す
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweepLocked は古いエントリを削除する（ロック済み前提）
func (c *Cache) sweepLocked(now time.Time) {
	for path, entry := range c.entries {
		if now.Sub(entry.ComputedAt) > c.maxAge {
			delete(c.entries, path)
		}
	}
}

// HashFile はファイル内容のMD5を16進文字列で返す
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ファイルのオープンに失敗: %w", err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
