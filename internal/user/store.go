package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nao1215/storefront/pkg/auth"
)

var (
	// ErrUserNotFound は該当するユーザーが存在しないことを表す。
	ErrUserNotFound = errors.New("ユーザーが見つかりません")
	// ErrDuplicateIdentity はメールアドレスの一意制約違反を表す。
	ErrDuplicateIdentity = errors.New("メールアドレスが重複しています")
)

// User は保存されたユーザーの資格情報。
type User struct {
	// ID はユーザーの一意識別子。
	ID string
	// Email はログインに使用するメールアドレス。
	Email string
	// Name は表示名。
	Name string
	// PasswordHash はbcryptハッシュ化されたパスワード。
	PasswordHash string
	// Roles はユーザーに付与されたロール。
	Roles []string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}

// Store はユーザーの資格情報をSQLiteに保存する。
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const selectUser = `SELECT id, email, name, password_hash, roles, created_at, updated_at FROM users`

// FindByEmail はメールアドレスが完全一致するユーザーを返す。
func (s *Store) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, selectUser+` WHERE email = ?`, email)
}

// FindByID はIDに一致するユーザーを返す。
func (s *Store) FindByID(ctx context.Context, id string) (*User, error) {
	return s.findOne(ctx, selectUser+` WHERE id = ?`, id)
}

// Create はデフォルトロールを付与したユーザーを作成する。
// メールアドレスが既に存在する場合は ErrDuplicateIdentity を返す。
func (s *Store) Create(ctx context.Context, email, name, passwordHash string) (*User, error) {
	now := s.now().UTC().Truncate(time.Second)
	u := &User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Roles:        []string{auth.DefaultRole},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	roles, err := json.Marshal(u.Roles)
	if err != nil {
		return nil, fmt.Errorf("ロールのシリアライズに失敗: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, roles, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, string(roles),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return u, nil
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*User, error) {
	var (
		u                    User
		roles                string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &roles, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}

	if err := json.Unmarshal([]byte(roles), &u.Roles); err != nil {
		return nil, fmt.Errorf("ロールのデシリアライズに失敗: %w", err)
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("作成日時の解析に失敗: %w", err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("更新日時の解析に失敗: %w", err)
	}
	return &u, nil
}

// isUniqueViolation はSQLiteの一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// 拡張エラーコードが無効な接続ではプライマリコードとメッセージで判定する
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}
