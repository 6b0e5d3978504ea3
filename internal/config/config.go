package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv は設定ファイルのパスを指定する環境変数
const ConfigFileEnv = "HIKYAKU_CONFIG"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Static      StaticConfig      `yaml:"static"`
	CORS        CORSConfig        `yaml:"cors"`
	Idempotence IdempotenceConfig `yaml:"idempotence"`
	FileCache   FileCacheConfig   `yaml:"filecache"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"` // リッスンするホスト
	Port int    `yaml:"port"`                     // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`    // 読み込みタイムアウト
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`   // 書き込みタイムアウト
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"` // シャットダウン待ち時間
}

// StaticConfig は静的ファイル配信の設定
type StaticConfig struct {
	StorageRoot       string         `yaml:"storage_root" validate:"required"` // 配信するルートディレクトリ
	DisableCaching    bool           `yaml:"disable_caching"`                  // ETag による条件付きGETを無効化
	WaterfallingIndex bool           `yaml:"waterfalling_index"`               // 親ディレクトリへ遡って同名ファイルを探す
	SniffContentType  bool           `yaml:"sniff_content_type"`               // 拡張子で決まらない場合に内容から推定
	Redirects         []RedirectRule `yaml:"redirects" validate:"dive"`        // 先に一致したものが優先
}

// RedirectRule はGETのリダイレクト規則
type RedirectRule struct {
	Pattern string `yaml:"pattern" validate:"required"` // パスに対する正規表現
	Target  string `yaml:"target" validate:"required"`  // 置換後のパス（$1 などを使用可）
}

// CORSConfig はCORSヘッダーの設定
type CORSConfig struct {
	AllowOrigin      string `yaml:"allow_origin"`      // 空ならCORSヘッダーを付けない
	AllowCredentials bool   `yaml:"allow_credentials"` // Access-Control-Allow-Credentials
}

// IdempotenceConfig は冪等キャッシュの設定
type IdempotenceConfig struct {
	Header string        `yaml:"header" validate:"required"` // 冪等キーを運ぶヘッダー名
	TTL    time.Duration `yaml:"ttl" validate:"gt=0"`        // レスポンスの保持期間
}

// FileCacheConfig はファイルハッシュキャッシュの設定
type FileCacheConfig struct {
	MaxAge time.Duration `yaml:"max_age" validate:"gt=0"` // ハッシュの保持期間
}

// WebSocketConfig はWebSocketの設定
type WebSocketConfig struct {
	OriginPatterns []string      `yaml:"origin_patterns"`              // 許可するクロスオリジン
	SendTimeout    time.Duration `yaml:"send_timeout" validate:"gt=0"` // 一斉送信時の1接続あたりのタイムアウト
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0, // WebSocket 用にタイムアウト無効化
			ShutdownTimeout: 5 * time.Second,
		},
		Static: StaticConfig{
			StorageRoot: "storage",
		},
		Idempotence: IdempotenceConfig{
			Header: "X-Idempotency-Key",
			TTL:    5 * time.Minute,
		},
		FileCache: FileCacheConfig{
			MaxAge: 30 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			SendTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load は設定を読み込む
// HIKYAKU_CONFIG が指定されていればそのYAMLファイルをデフォルト値に重ねる
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile は指定されたYAMLファイルから設定を読み込む
// path が空の場合はデフォルト値と環境変数のみを使う
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Static.StorageRoot = getEnvOrDefault("STORAGE_ROOT", c.Static.StorageRoot)
	c.CORS.AllowOrigin = getEnvOrDefault("CORS_ALLOW_ORIGIN", c.CORS.AllowOrigin)
	c.CORS.AllowCredentials = getEnvAsBoolOrDefault("CORS_ALLOW_CREDENTIALS", c.CORS.AllowCredentials)
	c.Idempotence.Header = getEnvOrDefault("IDEMPOTENCE_HEADER", c.Idempotence.Header)
	c.Log.Level = strings.ToLower(getEnvOrDefault("LOG_LEVEL", c.Log.Level))
	c.Log.Format = strings.ToLower(getEnvOrDefault("LOG_FORMAT", c.Log.Format))
}

var validate = validator.New()

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	if err := validate.Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			fe := validationErrs[0]
			return fmt.Errorf("無効な設定値 %s (%s=%s): %v", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
		}
		return err
	}

	for _, rule := range c.Static.Redirects {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("無効なリダイレクトパターン %q: %w", rule.Pattern, err)
		}
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault は環境変数を真偽値として取得する
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
