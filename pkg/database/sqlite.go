// Package database はSQLiteデータベースの接続とスキーマ適用をまとめて行う。
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	// SQLiteドライバを登録する。
	_ "modernc.org/sqlite"

	"github.com/nao1215/storefront/pkg/migration"
)

// pragmas はファイルDBに付与する接続オプション。
const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Open はSQLiteデータベースに接続し、マイグレーションを適用する。
// インメモリDBは接続ごとに別のDBになるため、接続数を1に固定する。
func Open(ctx context.Context, dsn string, migrations fs.FS, dir string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if isMemory(dsn) {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}
	if err := migration.Run(ctx, db, migrations, dir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return db, nil
}

// isMemory はDSNがインメモリDBを指すかを判定する。
func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// withPragmas はDSNに接続オプションを付与する。既に_pragmaを含む場合はそのまま返す。
func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	p := pragmas
	if isMemory(dsn) {
		p = "_pragma=foreign_keys(1)"
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + p
	}
	return dsn + "?" + p
}
