package user

import (
	"errors"
	"testing"

	"github.com/nao1215/storefront/pkg/database"
)

// newTestStore はインメモリSQLiteを使用するStoreを生成する。
func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(t.Context(), ":memory:", migrationsFS, migrationsDir)
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

// TestStore はStoreの作成・検索を検証する。
func TestStore(t *testing.T) {
	t.Parallel()

	t.Run("作成したユーザーをメールアドレスとIDで取得できること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		created, err := store.Create(t.Context(), "alice@example.com", "Alice", "digest")
		if err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		if created.ID == "" {
			t.Fatal("IDが採番されていない")
		}
		if len(created.Roles) != 1 || created.Roles[0] != "user" {
			t.Errorf("Roles = %v, want [user]", created.Roles)
		}

		byEmail, err := store.FindByEmail(t.Context(), "alice@example.com")
		if err != nil {
			t.Fatalf("FindByEmail()でエラーが発生: %v", err)
		}
		if byEmail.ID != created.ID || byEmail.Name != "Alice" || byEmail.PasswordHash != "digest" {
			t.Errorf("FindByEmail() = %+v", byEmail)
		}
		if len(byEmail.Roles) != 1 || byEmail.Roles[0] != "user" {
			t.Errorf("保存されたRoles = %v, want [user]", byEmail.Roles)
		}
		if !byEmail.CreatedAt.Equal(created.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", byEmail.CreatedAt, created.CreatedAt)
		}

		byID, err := store.FindByID(t.Context(), created.ID)
		if err != nil {
			t.Fatalf("FindByID()でエラーが発生: %v", err)
		}
		if byID.Email != "alice@example.com" {
			t.Errorf("Email = %q, want %q", byID.Email, "alice@example.com")
		}
	})

	t.Run("存在しないユーザーはErrUserNotFoundになること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		if _, err := store.FindByEmail(t.Context(), "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("FindByEmail() error = %v, want ErrUserNotFound", err)
		}
		if _, err := store.FindByID(t.Context(), "missing"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("FindByID() error = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("重複したメールアドレスはErrDuplicateIdentityになること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		if _, err := store.Create(t.Context(), "dup@example.com", "A", "d1"); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		if _, err := store.Create(t.Context(), "dup@example.com", "B", "d2"); !errors.Is(err, ErrDuplicateIdentity) {
			t.Errorf("Create() error = %v, want ErrDuplicateIdentity", err)
		}
	})

	t.Run("メールアドレスは大文字小文字を区別すること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		if _, err := store.Create(t.Context(), "alice@example.com", "A", "d"); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		if _, err := store.FindByEmail(t.Context(), "Alice@Example.com"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("FindByEmail() error = %v, want ErrUserNotFound", err)
		}
	})
}
