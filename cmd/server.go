// Package main はHikyakuサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"hikyaku/internal/config"
	"hikyaku/internal/demo"
	"hikyaku/internal/logging"
	"hikyaku/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		configPath = flag.String("config", "", "設定ファイルのパス (デフォルト: $"+config.ConfigFileEnv+")")
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		storage    = flag.String("storage", "", "静的ファイルのルート (デフォルト: storage)")
		logLevel   = flag.String("log-level", "", "ログレベル debug/info/warn/error (デフォルト: info)")
		heartbeat  = flag.Duration("heartbeat", 30*time.Second, "WebSocket ハートビートの間隔 (0 で無効)")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("Hikyaku")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	path := *configPath
	if path == "" {
		path = os.Getenv(config.ConfigFileEnv)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *storage != "" {
		cfg.Static.StorageRoot = *storage
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定が不正です: %v", err)
	}

	logger := logging.New(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	// サーバーを作成
	srv, err := server.New(cfg, logger)
	if err != nil {
		log.Fatalf("サーバーの作成に失敗しました: %v", err)
	}
	if err := demo.Install(srv, &demo.Counter{}, *heartbeat); err != nil {
		log.Fatalf("アクションの登録に失敗しました: %v", err)
	}

	// サーバーを起動
	logger.Info("Hikyaku サーバーを起動します", "addr", cfg.ServerAddress())
	if err := srv.Start(context.Background()); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
