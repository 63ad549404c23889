// productサービスのエントリポイント。
// 商品カタログのCRUDを提供する。
package main

import (
	"context"

	"github.com/nao1215/storefront/internal/product"
	"github.com/nao1215/storefront/pkg/config"
	"github.com/nao1215/storefront/pkg/logging"
)

func main() {
	cfg, err := config.Load("product", "3003")
	if err != nil {
		logger := logging.New("product", "info", logging.FormatJSON)
		logger.Fatal().Err(err).Msg("設定の読み込みに失敗")
	}

	logger := logging.New(cfg.Service, cfg.LogLevel, cfg.LogFormat)
	if cfg.UsingDefaultSecret() {
		logger.Warn().Msg("JWT_SECRETが未設定のためデフォルトの秘密鍵を使用します。本番環境では必ず設定してください")
	}

	server, err := product.NewServer(logger.WithContext(context.Background()), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("productサーバーの初期化に失敗")
	}
	defer server.Close()

	logger.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("productサービスを起動します")
	if err := server.Run(); err != nil {
		logger.Fatal().Err(err).Msg("productサービスの起動に失敗")
	}
}
