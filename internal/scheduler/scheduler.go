package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facebookgo/clock"
)

// DefaultPollStep は待機中にキャンセルを確認する間隔
const DefaultPollStep = 100 * time.Millisecond

// WorkFunc はタスク1回分の処理
// false を返すとタスクは永久に停止する
type WorkFunc func(ctx context.Context) (bool, error)

// Task は定期実行されるタスクの定義
type Task struct {
	Name     string        // ログ用の名前
	Delay    time.Duration // 初回実行までの待機
	Interval time.Duration // 実行開始から次の実行開始までの間隔
	Work     WorkFunc
}

// Handle は登録済みタスクの制御用ハンドル
type Handle struct {
	task   Task
	runs   atomic.Int64
	faults atomic.Int64
	done   chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	// cancelled は Start 前に Cancel された場合に立つ
	cancelled bool
}

// Name はタスク名を返す
func (h *Handle) Name() string {
	return h.task.Name
}

// Runs は処理を実行した回数を返す
func (h *Handle) Runs() int64 {
	return h.runs.Load()
}

// Faults は失敗した回数を返す
func (h *Handle) Faults() int64 {
	return h.faults.Load()
}

// Done はタスクのゴルーチンが終了すると閉じるチャンネルを返す
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel はこのタスクだけを停止する
func (h *Handle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cancelled = true
	if h.cancel != nil {
		h.cancel()
	}
}

// Scheduler はタスクの集合を管理する
type Scheduler struct {
	logger   *slog.Logger
	clock    clock.Clock
	pollStep time.Duration

	mu      sync.Mutex
	handles []*Handle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option は Scheduler の設定を変更する
type Option func(*Scheduler)

// WithClock は時刻の取得元を差し替える
func WithClock(clk clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clk
	}
}

// WithPollStep は待機中のポーリング間隔を設定する
func WithPollStep(step time.Duration) Option {
	return func(s *Scheduler) {
		if step > 0 {
			s.pollStep = step
		}
	}
}

// New は新しい Scheduler を作成する
func New(logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		logger:   logger.With("component", "task"),
		clock:    clock.New(),
		pollStep: DefaultPollStep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add はタスクを登録する
// Start 後に追加したタスクはすぐに開始する
func (s *Scheduler) Add(task Task) (*Handle, error) {
	if task.Work == nil {
		return nil, errors.New("タスクの処理が設定されていません")
	}
	if task.Delay < 0 {
		return nil, fmt.Errorf("タスク %s の初回待機が負の値です: %s", task.Name, task.Delay)
	}
	if task.Interval <= 0 {
		return nil, fmt.Errorf("タスク %s の実行間隔が無効です: %s", task.Name, task.Interval)
	}

	h := &Handle{task: task, done: make(chan struct{})}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.handles = append(s.handles, h)
	if s.ctx != nil {
		s.launchLocked(h)
	}
	return h, nil
}

// Start は登録済みの全タスクを開始する
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, h := range s.handles {
		s.launchLocked(h)
	}
	s.logger.Info("スケジューラーを開始しました", "tasks", len(s.handles))
}

// Stop は全タスクをキャンセルし、終了を待つ
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Handles は登録済みタスクのハンドルを返す
func (s *Scheduler) Handles() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Handle(nil), s.handles...)
}

// launchLocked はタスクのゴルーチンを開始する（ロック済み前提）
func (s *Scheduler) launchLocked(h *Handle) {
	h.mu.Lock()
	ctx, cancel := context.WithCancel(s.ctx)
	h.cancel = cancel
	if h.cancelled {
		cancel()
	}
	h.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, h)
}

// run はタスクのメインループ
func (s *Scheduler) run(ctx context.Context, h *Handle) {
	defer s.wg.Done()
	defer close(h.done)

	logger := s.logger.With("task", h.task.Name)

	if !s.sleep(ctx, h.task.Delay) {
		return
	}

	for ctx.Err() == nil {
		started := s.clock.Now()

		proceed, err := s.invoke(ctx, h)
		h.runs.Add(1)
		if err != nil {
			h.faults.Add(1)
			logger.Error("タスクの実行に失敗しました", "error_type", fmt.Sprintf("%T", err), "error", err)
		} else if !proceed {
			logger.Info("タスクが停止を要求しました")
			return
		}

		elapsed := s.clock.Now().Sub(started)
		if !s.sleep(ctx, h.task.Interval-elapsed) {
			return
		}
	}
}

// invoke は処理を1回実行し、panic を失敗として扱う
func (s *Scheduler) invoke(ctx context.Context, h *Handle) (proceed bool, err error) {
	defer func() {
		if v := recover(); v != nil {
			proceed = true
			err = fmt.Errorf("panic: %v\n%s", v, debug.Stack())
		}
	}()
	return h.task.Work(ctx)
}

// sleep は d の間、pollStep 刻みで待機する
// キャンセルされた場合は false を返す
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	deadline := s.clock.Now().Add(d)
	for {
		if ctx.Err() != nil {
			return false
		}
		remaining := deadline.Sub(s.clock.Now())
		if remaining <= 0 {
			return true
		}
		step := s.pollStep
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-s.clock.After(step):
		}
	}
}
