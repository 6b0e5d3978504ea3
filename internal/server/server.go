package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"hikyaku/internal/action"
	"hikyaku/internal/config"
	"hikyaku/internal/filecache"
	"hikyaku/internal/hub"
	"hikyaku/internal/idempotence"
	"hikyaku/internal/scheduler"
)

// defaultShutdownTimeout は設定がない場合のシャットダウン待ち時間
const defaultShutdownTimeout = 5 * time.Second

// redirectRule はコンパイル済みのリダイレクト規則
type redirectRule struct {
	pattern *regexp.Regexp
	target  string
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
	clock      clock.Clock

	actions     *action.Registry
	multipart   *action.MultipartRegistry
	idempotence *idempotence.Cache
	files       *filecache.Cache
	hub         *hub.Hub
	scheduler   *scheduler.Scheduler
	hooks       Hooks

	storageRoot string
	redirects   []redirectRule

	// stopping は Shutdown の開始時に閉じる
	stopping     chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error
}

// Option は Server の生成オプション
type Option func(*Server)

// WithActions はJSONアクションの登録表を指定する
func WithActions(r *action.Registry) Option {
	return func(s *Server) {
		if r != nil {
			s.actions = r
		}
	}
}

// WithMultipartActions は multipart アクションの登録表を指定する
func WithMultipartActions(r *action.MultipartRegistry) Option {
	return func(s *Server) {
		if r != nil {
			s.multipart = r
		}
	}
}

// WithHooks は拡張ポイントを指定する
func WithHooks(h Hooks) Option {
	return func(s *Server) {
		s.hooks = h
	}
}

// WithClock はキャッシュとタスクが使う時計を差し替える
func WithClock(clk clock.Clock) Option {
	return func(s *Server) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:    cfg,
		logger:    logger.With("component", "router"),
		clock:     clock.New(),
		actions:   action.NewRegistry(),
		multipart: action.NewMultipartRegistry(),
		stopping:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	root, err := filepath.Abs(cfg.Static.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("ストレージのパスを解決できません: %w", err)
	}
	s.storageRoot = root

	for _, rule := range cfg.Static.Redirects {
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("無効なリダイレクトパターン %q: %w", rule.Pattern, err)
		}
		s.redirects = append(s.redirects, redirectRule{pattern: pattern, target: rule.Target})
	}

	s.idempotence = idempotence.New(
		idempotence.WithTTL(cfg.Idempotence.TTL),
		idempotence.WithClock(s.clock),
	)
	s.files = filecache.New(
		filecache.WithMaxAge(cfg.FileCache.MaxAge),
		filecache.WithClock(s.clock),
	)
	s.hub = hub.New(logger, cfg.WebSocket.SendTimeout)
	s.scheduler = scheduler.New(logger, scheduler.WithClock(s.clock))

	s.engine = s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      s.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s, nil
}

// setupRoutes はすべてのパスとメソッドを dispatch で受ける gin エンジンを作る
func (s *Server) setupRoutes() *gin.Engine {
	if s.config.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(s.accessLog())

	// Any に含まれないメソッドは NoRoute に落ちる
	engine.Any("/*path", s.dispatch)
	engine.NoRoute(s.dispatch)

	return engine
}

// accessLog はリクエストごとのアクセスログを出力するミドルウェア
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug("リクエストを処理しました",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// Handler はサーバーの http.Handler を返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Actions はJSONアクションの登録表を返す
func (s *Server) Actions() *action.Registry {
	return s.actions
}

// MultipartActions は multipart アクションの登録表を返す
func (s *Server) MultipartActions() *action.MultipartRegistry {
	return s.multipart
}

// StorageRoot は静的ファイルを配信するルートの絶対パスを返す
func (s *Server) StorageRoot() string {
	return s.storageRoot
}

// AddTask はバックグラウンドタスクを登録する
// Start 後に追加したタスクはすぐに開始する
func (s *Server) AddTask(task scheduler.Task) (*scheduler.Handle, error) {
	return s.scheduler.Add(task)
}

// Broadcast は値をJSONにエンコードして全WebSocket接続へ送る
// 送信を試みた接続数を返す
func (s *Server) Broadcast(v any) (int, error) {
	msg, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("一斉送信メッセージのエンコードに失敗: %w", err)
	}
	return s.hub.Broadcast(msg), nil
}

// Start はサーバーを起動する
// ctx のキャンセルか SIGINT / SIGTERM でグレースフルにシャットダウンする
func (s *Server) Start(ctx context.Context) error {
	if err := s.prepareStorage(); err != nil {
		return err
	}

	// シグナルハンドリング
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}
	s.logger.Info("HTTPサーバーを起動しています", "addr", listener.Addr().String(), "storage", s.storageRoot)

	s.scheduler.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("サーバーの実行に失敗: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.stopping:
		}
		if ctx.Err() != nil {
			s.logger.Info("停止要求を受け取りました", "cause", context.Cause(ctx))
		}
		// グレースフルシャットダウン
		return s.Shutdown()
	})

	return g.Wait()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
// 実行中の Start も戻る。複数回呼んでも停止処理は一度だけ行う
func (s *Server) Shutdown() error {
	s.shutdownOnce.Do(func() {
		close(s.stopping)
		s.shutdownErr = s.shutdown()
	})
	return s.shutdownErr
}

func (s *Server) shutdown() error {
	s.logger.Info("サーバーをシャットダウンしています...")

	s.scheduler.Stop()
	s.hub.CloseAll("server shutdown")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}

// prepareStorage はストレージのルートがなければ作成し、初期ファイルを置く
func (s *Server) prepareStorage() error {
	info, err := os.Stat(s.storageRoot)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("ストレージのルートがディレクトリではありません: %s", s.storageRoot)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("ストレージの確認に失敗: %w", err)
	}

	if err := os.MkdirAll(s.storageRoot, 0o755); err != nil {
		return fmt.Errorf("ストレージの作成に失敗: %w", err)
	}
	s.logger.Info("ストレージを作成しました", "root", s.storageRoot)

	return seedStorage(s.storageRoot)
}
