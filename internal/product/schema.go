package product

import "embed"

// migrationsFS はproductサービスのマイグレーションファイル。
//
//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// migrationsDir はmigrationsFS内のマイグレーションディレクトリ。
const migrationsDir = "migrations"
