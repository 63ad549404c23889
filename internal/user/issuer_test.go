package user

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/storefront/pkg/auth"
)

// testSecret はテスト用のJWT秘密鍵。
const testSecret = "test-secret"

// issuedAt はテストで使用する固定のトークン発行時刻。
var issuedAt = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return issuedAt }

// newTestIssuer はインメモリSQLiteと固定時計を使用するIssuerを生成する。
func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	return NewIssuer(newTestStore(t), auth.NewHasher(), testSecret, WithIssuerClock(fixedClock))
}

// failingHasher は常にエラーを返すPasswordHasher。
type failingHasher struct{}

func (failingHasher) Hash(string) (string, error)         { return "", auth.ErrHashFormat }
func (failingHasher) Verify(string, string) (bool, error) { return false, auth.ErrHashFormat }

// countingHasher は照合の回数を記録するPasswordHasher。
type countingHasher struct {
	*auth.Hasher
	mu       sync.Mutex
	verified []string
}

func (h *countingHasher) Verify(plaintext, digest string) (bool, error) {
	h.mu.Lock()
	h.verified = append(h.verified, digest)
	h.mu.Unlock()
	return h.Hasher.Verify(plaintext, digest)
}

// TestIssuerRegister はRegisterを検証する。
func TestIssuerRegister(t *testing.T) {
	t.Parallel()

	t.Run("登録するとトークンとユーザー情報が返ること", func(t *testing.T) {
		t.Parallel()

		issuer := newTestIssuer(t)
		result, err := issuer.Register(t.Context(), "alice@example.com", "Alice", "password123")
		if err != nil {
			t.Fatalf("Register()でエラーが発生: %v", err)
		}
		if result.User.ID == "" || result.User.Email != "alice@example.com" || result.User.Name != "Alice" {
			t.Errorf("User = %+v", result.User)
		}

		v := auth.NewValidator(testSecret, auth.WithClock(fixedClock))
		claims, err := v.Validate(result.Token)
		if err != nil {
			t.Fatalf("発行されたトークンの検証に失敗: %v", err)
		}
		if claims.Subject != result.User.ID {
			t.Errorf("Subject = %q, want %q", claims.Subject, result.User.ID)
		}
		if claims.Email != "alice@example.com" {
			t.Errorf("Email = %q, want %q", claims.Email, "alice@example.com")
		}
		if len(claims.Roles) != 1 || claims.Roles[0] != auth.DefaultRole {
			t.Errorf("Roles = %v, want [user]", claims.Roles)
		}
		if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != auth.TokenLifetime {
			t.Errorf("有効期間 = %v, want %v", got, auth.TokenLifetime)
		}
	})

	t.Run("保存されるパスワードはハッシュ化されていること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		issuer := NewIssuer(store, auth.NewHasher(), testSecret)
		if _, err := issuer.Register(t.Context(), "bob@example.com", "Bob", "password123"); err != nil {
			t.Fatalf("Register()でエラーが発生: %v", err)
		}

		u, err := store.FindByEmail(t.Context(), "bob@example.com")
		if err != nil {
			t.Fatalf("FindByEmail()でエラーが発生: %v", err)
		}
		if u.PasswordHash == "password123" {
			t.Error("パスワードが平文で保存されている")
		}
		ok, err := auth.NewHasher().Verify("password123", u.PasswordHash)
		if err != nil || !ok {
			t.Errorf("Verify() = %v, %v, want true, nil", ok, err)
		}
	})

	t.Run("既存のメールアドレスではErrIdentityExistsが返ること", func(t *testing.T) {
		t.Parallel()

		issuer := newTestIssuer(t)
		if _, err := issuer.Register(t.Context(), "alice@example.com", "Alice", "password123"); err != nil {
			t.Fatalf("Register()でエラーが発生: %v", err)
		}
		_, err := issuer.Register(t.Context(), "alice@example.com", "Alice2", "password456")
		if !errors.Is(err, ErrIdentityExists) {
			t.Errorf("error = %v, want ErrIdentityExists", err)
		}
	})

	t.Run("同時に同じメールアドレスで登録しても成功は1件のみであること", func(t *testing.T) {
		t.Parallel()

		issuer := newTestIssuer(t)
		const n = 5
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = issuer.Register(context.Background(), "race@example.com", "Racer", "password123")
			}()
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case !errors.Is(err, ErrIdentityExists):
				t.Errorf("予期しないエラー: %v", err)
			}
		}
		if succeeded != 1 {
			t.Errorf("成功件数 = %d, want 1", succeeded)
		}
	})

	t.Run("ハッシュ化に失敗した場合はエラーが返ること", func(t *testing.T) {
		t.Parallel()

		issuer := NewIssuer(newTestStore(t), failingHasher{}, testSecret)
		_, err := issuer.Register(t.Context(), "carol@example.com", "Carol", "password123")
		if !errors.Is(err, auth.ErrHashFormat) {
			t.Errorf("error = %v, want ErrHashFormat", err)
		}
	})
}

// TestIssuerLogin はLoginを検証する。
func TestIssuerLogin(t *testing.T) {
	t.Parallel()

	t.Run("正しい資格情報でトークンが返ること", func(t *testing.T) {
		t.Parallel()

		issuer := newTestIssuer(t)
		registered, err := issuer.Register(t.Context(), "alice@example.com", "Alice", "password123")
		if err != nil {
			t.Fatalf("Register()でエラーが発生: %v", err)
		}

		result, err := issuer.Login(t.Context(), "alice@example.com", "password123")
		if err != nil {
			t.Fatalf("Login()でエラーが発生: %v", err)
		}
		if result.User != registered.User {
			t.Errorf("User = %+v, want %+v", result.User, registered.User)
		}

		claims, err := auth.NewValidator(testSecret, auth.WithClock(fixedClock)).Validate(result.Token)
		if err != nil {
			t.Fatalf("トークンの検証に失敗: %v", err)
		}
		if claims.Subject != registered.User.ID {
			t.Errorf("Subject = %q, want %q", claims.Subject, registered.User.ID)
		}
	})

	t.Run("未登録のメールアドレスと誤ったパスワードで同じエラーになること", func(t *testing.T) {
		t.Parallel()

		issuer := newTestIssuer(t)
		if _, err := issuer.Register(t.Context(), "alice@example.com", "Alice", "password123"); err != nil {
			t.Fatalf("Register()でエラーが発生: %v", err)
		}

		_, wrongPassword := issuer.Login(t.Context(), "alice@example.com", "wrong-password")
		_, unknownEmail := issuer.Login(t.Context(), "nobody@example.com", "password123")

		if !errors.Is(wrongPassword, ErrInvalidCredentials) {
			t.Errorf("誤ったパスワード: error = %v, want ErrInvalidCredentials", wrongPassword)
		}
		if !errors.Is(unknownEmail, ErrInvalidCredentials) {
			t.Errorf("未登録のメールアドレス: error = %v, want ErrInvalidCredentials", unknownEmail)
		}
		if wrongPassword.Error() != unknownEmail.Error() {
			t.Errorf("エラーメッセージが異なる: %q != %q", wrongPassword.Error(), unknownEmail.Error())
		}
	})

	t.Run("未登録のメールアドレスでもパスワードの照合が行われること", func(t *testing.T) {
		t.Parallel()

		hasher := &countingHasher{Hasher: auth.NewHasher()}
		issuer := NewIssuer(newTestStore(t), hasher, testSecret)

		for range 2 {
			if _, err := issuer.Login(t.Context(), "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("error = %v, want ErrInvalidCredentials", err)
			}
		}

		hasher.mu.Lock()
		defer hasher.mu.Unlock()
		if len(hasher.verified) != 2 {
			t.Fatalf("照合回数 = %d, want 2", len(hasher.verified))
		}
		if hasher.verified[0] == "" || hasher.verified[0] != hasher.verified[1] {
			t.Errorf("照合に使用したハッシュ = %q", hasher.verified)
		}
	})

	t.Run("ダミーハッシュを生成できなくても未登録のメールアドレスはErrInvalidCredentialsになること", func(t *testing.T) {
		t.Parallel()

		issuer := NewIssuer(newTestStore(t), failingHasher{}, testSecret)
		if _, err := issuer.Login(t.Context(), "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("保存されたハッシュが不正な場合はErrHashFormatが返ること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		if _, err := store.Create(t.Context(), "broken@example.com", "Broken", "not-a-bcrypt-hash"); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}

		issuer := NewIssuer(store, auth.NewHasher(), testSecret)
		_, err := issuer.Login(t.Context(), "broken@example.com", "password123")
		if !errors.Is(err, auth.ErrHashFormat) {
			t.Errorf("error = %v, want ErrHashFormat", err)
		}
	})
}
