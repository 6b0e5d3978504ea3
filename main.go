package main

import (
	"context"
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
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	logger := logging.New(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	// サーバーを作成
	srv, err := server.New(cfg, logger)
	if err != nil {
		log.Fatalf("サーバーの作成に失敗しました: %v", err)
	}

	// サンプルのアクションとタスクを登録
	if err := demo.Install(srv, &demo.Counter{}, 30*time.Second); err != nil {
		log.Fatalf("アクションの登録に失敗しました: %v", err)
	}

	// サーバーを起動
	if err := srv.Start(context.Background()); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
