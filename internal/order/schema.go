package order

import "embed"

// migrationsFS はorderサービスのマイグレーションファイル。
//
//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// migrationsDir はmigrationsFS内のマイグレーションディレクトリ。
const migrationsDir = "migrations"
