package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")

	// 設定を読み込む
	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// 基本的な設定値を検証
	if cfg == nil {
		t.Fatal("設定がnilです")
	}

	// サーバー設定の検証
	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Errorf("無効なポート番号: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（無効）でも正常
	if cfg.Server.WriteTimeout < 0 {
		t.Error("書き込みタイムアウトが負の値です")
	}

	// デフォルト値の検証
	if cfg.Static.StorageRoot != "storage" {
		t.Errorf("ストレージのルートが既定値ではありません: %s", cfg.Static.StorageRoot)
	}
	if cfg.Idempotence.TTL != 5*time.Minute {
		t.Errorf("冪等キャッシュのTTLが既定値ではありません: %s", cfg.Idempotence.TTL)
	}
	if cfg.FileCache.MaxAge != 30*time.Minute {
		t.Errorf("ファイルキャッシュの保持期間が既定値ではありません: %s", cfg.FileCache.MaxAge)
	}
	if cfg.Idempotence.Header == "" {
		t.Error("冪等キーのヘッダー名が設定されていません")
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{
			name:      "正常な設定",
			modify:    func(c *Config) {},
			expectErr: false,
		},
		{
			name:      "無効なポート番号",
			modify:    func(c *Config) { c.Server.Port = 99999 },
			expectErr: true,
		},
		{
			name:      "ストレージのルートなし",
			modify:    func(c *Config) { c.Static.StorageRoot = "" },
			expectErr: true,
		},
		{
			name:      "冪等キーのヘッダー名なし",
			modify:    func(c *Config) { c.Idempotence.Header = "" },
			expectErr: true,
		},
		{
			name:      "TTLがゼロ",
			modify:    func(c *Config) { c.Idempotence.TTL = 0 },
			expectErr: true,
		},
		{
			name:      "未知のログレベル",
			modify:    func(c *Config) { c.Log.Level = "verbose" },
			expectErr: true,
		},
		{
			name: "リダイレクトのターゲットなし",
			modify: func(c *Config) {
				c.Static.Redirects = []RedirectRule{{Pattern: "^/old$"}}
			},
			expectErr: true,
		},
		{
			name: "不正な正規表現",
			modify: func(c *Config) {
				c.Static.Redirects = []RedirectRule{{Pattern: "^/(old", Target: "/new"}}
			},
			expectErr: true,
		},
		{
			name: "正しいリダイレクト",
			modify: func(c *Config) {
				c.Static.Redirects = []RedirectRule{{Pattern: "^/old/(.*)$", Target: "/new/$1"}}
			},
			expectErr: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラーが発生しました: %v", err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "192.168.1.100",
			Port: 9090,
		},
	}

	expected := "192.168.1.100:9090"
	actual := cfg.ServerAddress()

	if actual != expected {
		t.Errorf("サーバーアドレスが一致しません: got %s, want %s", actual, expected)
	}
}

// TestEnvironmentVariables は環境変数の処理をテストする
// 注意: このテストは環境変数を変更するため、parallelは使わない
func TestEnvironmentVariables(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("SERVER_HOST", "test.example.com")
	t.Setenv("PORT", "9999")
	t.Setenv("CORS_ALLOW_ORIGIN", "https://app.example.com")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "test.example.com" {
		t.Errorf("環境変数のホストが反映されていません: got %s, want test.example.com", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("環境変数のポートが反映されていません: got %d, want 9999", cfg.Server.Port)
	}
	if cfg.CORS.AllowOrigin != "https://app.example.com" || !cfg.CORS.AllowCredentials {
		t.Errorf("環境変数のCORS設定が反映されていません: %+v", cfg.CORS)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("環境変数のログレベルが反映されていません: got %s", cfg.Log.Level)
	}
}

// TestLoadFile はYAMLファイルからの読み込みをテストする
func TestLoadFile(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_ROOT", "")

	path := filepath.Join(t.TempDir(), "hikyaku.yaml")
	data := []byte(`
server:
  port: 9090
  read_timeout: 3s
static:
  storage_root: /srv/www
  waterfalling_index: true
  redirects:
    - pattern: "^/docs$"
      target: "/docs/"
idempotence:
  ttl: 90s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("設定ファイルの作成に失敗しました: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("設定ファイルの読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("ポートが反映されていません: got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 3*time.Second {
		t.Errorf("読み込みタイムアウトが反映されていません: got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Static.StorageRoot != "/srv/www" || !cfg.Static.WaterfallingIndex {
		t.Errorf("静的ファイル設定が反映されていません: %+v", cfg.Static)
	}
	if len(cfg.Static.Redirects) != 1 || cfg.Static.Redirects[0].Target != "/docs/" {
		t.Errorf("リダイレクト設定が反映されていません: %+v", cfg.Static.Redirects)
	}
	if cfg.Idempotence.TTL != 90*time.Second {
		t.Errorf("TTLが反映されていません: got %s", cfg.Idempotence.TTL)
	}
	// ファイルで指定していない値はデフォルトのまま
	if cfg.Idempotence.Header != "X-Idempotency-Key" {
		t.Errorf("ヘッダー名がデフォルト値ではありません: got %s", cfg.Idempotence.Header)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("存在しないファイルでエラーが期待されました")
	}
}
