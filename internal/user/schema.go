package user

import "embed"

// migrationsFS はuserサービスのマイグレーションファイル。
//
//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// migrationsDir はmigrationsFS内のマイグレーションディレクトリ。
const migrationsDir = "migrations"
