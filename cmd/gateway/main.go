// API Gatewayサービスのエントリポイント。
// 外部からアクセス可能な唯一のサービスで、認証・認可を行ってから内部サービスへ転送する。
package main

import (
	"github.com/nao1215/storefront/internal/gateway"
	"github.com/nao1215/storefront/pkg/config"
	"github.com/nao1215/storefront/pkg/logging"
)

func main() {
	cfg, err := config.Load("gateway", "3000")
	if err != nil {
		logger := logging.New("gateway", "info", logging.FormatJSON)
		logger.Fatal().Err(err).Msg("設定の読み込みに失敗")
	}

	logger := logging.New(cfg.Service, cfg.LogLevel, cfg.LogFormat)
	if cfg.UsingDefaultSecret() {
		logger.Warn().Msg("JWT_SECRETが未設定のためデフォルトの秘密鍵を使用します。本番環境では必ず設定してください")
	}

	server, err := gateway.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Gatewayサーバーの初期化に失敗")
	}

	logger.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("user", cfg.UserServiceURL).
		Str("product", cfg.ProductServiceURL).
		Str("order", cfg.OrderServiceURL).
		Msg("Gatewayサービスを起動します")
	if err := server.Run(); err != nil {
		logger.Fatal().Err(err).Msg("Gatewayサービスの起動に失敗")
	}
}
