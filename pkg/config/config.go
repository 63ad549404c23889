// Package config は各サービスの設定を環境変数から読み込む。
//
// カレントディレクトリに .env があれば先に読み込み、環境変数の値を優先する。
// 読み込んだ設定はstructタグで検証する。
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nao1215/storefront/pkg/auth"
)

// Config は全サービス共通の設定。
type Config struct {
	// Service はサービス名。ログとデフォルトのDBパスに使用する。
	Service string `mapstructure:"-"`
	// Env は実行環境。
	Env string `mapstructure:"app_env" validate:"oneof=development production test"`
	// Port はHTTPサーバーのリッスンポート。
	Port string `mapstructure:"port" validate:"required,numeric"`
	// DatabaseURL はSQLiteのDSN。
	DatabaseURL string `mapstructure:"database_url" validate:"required"`
	// JWTSecret はJWTの署名・検証に使用する共有秘密鍵。
	JWTSecret string `mapstructure:"jwt_secret"`
	// UserServiceURL はuserサービスのベースURL。
	UserServiceURL string `mapstructure:"user_service_url" validate:"omitempty,url"`
	// OrderServiceURL はorderサービスのベースURL。
	OrderServiceURL string `mapstructure:"order_service_url" validate:"omitempty,url"`
	// ProductServiceURL はproductサービスのベースURL。
	ProductServiceURL string `mapstructure:"product_service_url" validate:"omitempty,url"`
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string `mapstructure:"frontend_url" validate:"omitempty,url"`
	// LogLevel はログレベル。
	LogLevel string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	// LogFormat はログの出力形式。
	LogFormat string `mapstructure:"log_format" validate:"oneof=json console"`

	// defaultSecret はJWT_SECRETが未設定でフォールバック値を使用しているかどうか。
	defaultSecret bool
}

// UsingDefaultSecret はJWT_SECRETが未設定で auth.DefaultSecret を使用しているかを返す。
func (c *Config) UsingDefaultSecret() bool {
	return c.defaultSecret
}

// Load はサービスの設定を読み込む。defaultPortはPORT未設定時のポート番号。
func Load(service, defaultPort string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".envの読み込みに失敗: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("app_env", "development")
	v.SetDefault("port", defaultPort)
	v.SetDefault("database_url", fmt.Sprintf("file:/data/%s.db", service))
	v.SetDefault("jwt_secret", "")
	v.SetDefault("user_service_url", "http://localhost:3001")
	v.SetDefault("order_service_url", "http://localhost:3002")
	v.SetDefault("product_service_url", "http://localhost:3003")
	v.SetDefault("frontend_url", "http://localhost:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	cfg := &Config{Service: service}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	if cfg.JWTSecret == "" {
		cfg.defaultSecret = true
		cfg.JWTSecret = auth.ResolveSecret(cfg.JWTSecret)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}
	return cfg, nil
}
