package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// リトライ間隔の下限
const MinPeerBackoff = time.Second

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8081）
	GoEnv string // dev/prod

	DatabaseURL      string // あれば最優先
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	CartURL string // カートサービス
	UserURL string // ユーザー（お気に入り）サービス

	Flags FeatureFlags

	PeerMaxRetries     int           // 初回を除いた再試行回数
	PeerInitialBackoff time.Duration // 1回目の待ち時間（以降2倍）
	PeerAttemptTimeout time.Duration // 1回ごとのタイムアウト

	CategoriesFile  string
	ShutdownTimeout time.Duration
}

// 外部サービス呼び出しのON/OFF
type FeatureFlags struct {
	CallCart bool
	CallUser bool
}

func (f FeatureFlags) CallCartEnabled() bool { return f.CallCart }
func (f FeatureFlags) CallUserEnabled() bool { return f.CallUser }

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoi("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	callCart, err := boolean("CALL_CART_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	callUser, err := boolean("CALL_USER_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	maxRetries, err := atoi("PEER_MAX_RETRIES", 3)
	if err != nil {
		return Config{}, err
	}
	backoff, err := duration("PEER_INITIAL_BACKOFF", MinPeerBackoff)
	if err != nil {
		return Config{}, err
	}
	attemptTimeout, err := duration("PEER_ATTEMPT_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	shutdownTimeout, err := duration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:  normalizePort(getenv("PORT", "8081")),
		GoEnv: getenv("GO_ENV", "dev"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "products"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		CartURL: strings.TrimRight(getenv("CART_URL", "http://localhost:8080"), "/"),
		UserURL: strings.TrimRight(getenv("USER_URL", "http://localhost:8082"), "/"),

		Flags: FeatureFlags{CallCart: callCart, CallUser: callUser},

		PeerMaxRetries:     maxRetries,
		PeerInitialBackoff: backoff,
		PeerAttemptTimeout: attemptTimeout,

		CategoriesFile:  getenv("CATEGORIES_FILE", "config/categories.yaml"),
		ShutdownTimeout: shutdownTimeout,
	}

	//必須チェック
	if cfg.GoEnv != "dev" && cfg.GoEnv != "prod" {
		return Config{}, fmt.Errorf("GO_ENV must be dev or prod")
	}
	if cfg.PeerMaxRetries < 0 {
		return Config{}, fmt.Errorf("PEER_MAX_RETRIES must be >= 0")
	}
	if cfg.PeerInitialBackoff < MinPeerBackoff {
		return Config{}, fmt.Errorf("PEER_INITIAL_BACKOFF must be >= %s", MinPeerBackoff)
	}
	if cfg.CartURL == "" {
		return Config{}, fmt.Errorf("CART_URL is required")
	}
	if cfg.UserURL == "" {
		return Config{}, fmt.Errorf("USER_URL is required")
	}

	return cfg, nil
}

// DSNはgorm用の接続文字列
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

func normalizePort(v string) string {
	return strings.TrimPrefix(v, ":")
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoi(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func boolean(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be boolean: %w", key, err)
	}
	return b, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}
