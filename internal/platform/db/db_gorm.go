// Package db はgormによるデータベース接続を提供します。
package db

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	// DriverSQLite はSQLiteドライバ名です。
	DriverSQLite = "sqlite"
	// DriverPostgres はPostgreSQLドライバ名です。
	DriverPostgres = "postgres"

	retryInterval = 3 * time.Second
)

// ErrDisabled はデータベースが設定されていないことを示します。
var ErrDisabled = errors.New("database is not configured")

// Config はデータベース接続設定を保持します。
type Config struct {
	Driver   string // "sqlite" または "postgres"、空の場合は無効
	DSN      string // 指定された場合は各項目より優先
	User     string
	Password string
	Name     string
	Host     string
	Port     string
	Migrate  bool
}

// Opener はDSNからDBを開く関数です。テストで差し替えられます。
type Opener func(dsn string) (*gorm.DB, error)

// LoadConfigFromEnv は環境変数からデータベース設定を読み込みます。
func LoadConfigFromEnv() Config {
	return Config{
		Driver:   os.Getenv("DB_DRIVER"),
		DSN:      os.Getenv("DB_DSN"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     os.Getenv("DB_NAME"),
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		Migrate:  os.Getenv("RUN_MIGRATIONS") == "true",
	}
}

// BuildDSN は設定からドライバごとのDSN文字列を生成します。
func BuildDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	switch cfg.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port)
	case DriverSQLite:
		if cfg.Name == "" {
			return "classifier.db"
		}
		return cfg.Name
	default:
		return ""
	}
}

// OpenerFor はドライバに対応するOpenerを返します。
func OpenerFor(driver string) (Opener, error) {
	switch driver {
	case DriverPostgres:
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(postgres.Open(dsn), &gorm.Config{}) }, nil
	case DriverSQLite:
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(sqlite.Open(dsn), &gorm.Config{}) }, nil
	case "":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

// ConnectWithRetry は接続に成功するかtimeoutを超えるまで一定間隔で再試行します。
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("DB connect failed after %v: %w", timeout, err)
		}
		slog.Warn("DB connect failed, retrying...", "error", err)
		time.Sleep(retryInterval)
	}
}

// Open は設定に従ってDBへ接続し、必要であればmodelsをマイグレーションします。
func Open(cfg Config, models ...any) (*gorm.DB, error) {
	open, err := OpenerFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := ConnectWithRetry(BuildDSN(cfg), 60*time.Second, open)
	if err != nil {
		return nil, err
	}

	if cfg.Migrate || cfg.Driver == DriverSQLite {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return db, nil
}
