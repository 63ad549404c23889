package auth

import (
	"errors"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

// fixedClock は常に同じ時刻を返す時刻関数を生成する。
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// signMap はMapClaimsを指定アルゴリズムで署名するテスト用ヘルパー。
func signMap(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("テスト用トークンの署名に失敗: %v", err)
	}
	return signed
}

// TestNewClaims はNewClaims関数を検証する。
func TestNewClaims(t *testing.T) {
	t.Parallel()

	t.Run("有効期限が発行日時の7日後であること", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 10, 14, 9, 30, 15, 500, time.UTC)
		c := NewClaims("user-1", "a@example.com", []string{"user"}, now)

		if !c.IssuedAt.Equal(now.Truncate(time.Second)) {
			t.Errorf("IssuedAt = %v, want %v", c.IssuedAt, now.Truncate(time.Second))
		}
		if got := c.ExpiresAt.Sub(c.IssuedAt); got != 7*24*time.Hour {
			t.Errorf("ExpiresAt - IssuedAt = %v, want %v", got, 7*24*time.Hour)
		}
	})

	t.Run("ロールのスライスが呼び出し元と共有されないこと", func(t *testing.T) {
		t.Parallel()

		roles := []string{"user"}
		c := NewClaims("user-1", "a@example.com", roles, time.Now())
		roles[0] = "admin"
		if c.Roles[0] != "user" {
			t.Errorf("Roles[0] = %q, want %q", c.Roles[0], "user")
		}
	})
}

// TestSignAndValidate は署名と検証の往復を検証する。
func TestSignAndValidate(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	claims := NewClaims("user-123", "test@example.com", []string{"user", "admin"}, issued)

	t.Run("有効期間内であれば元のクレームが復元されること", func(t *testing.T) {
		t.Parallel()

		token, err := Sign(claims, testSecret)
		if err != nil {
			t.Fatalf("Sign()でエラーが発生: %v", err)
		}

		for _, at := range []time.Time{claims.IssuedAt, issued.Add(72 * time.Hour), claims.ExpiresAt} {
			got, err := NewValidator(testSecret, WithClock(fixedClock(at))).Validate(token)
			if err != nil {
				t.Fatalf("Validate() at %v でエラーが発生: %v", at, err)
			}
			if got.Subject != claims.Subject {
				t.Errorf("Subject = %q, want %q", got.Subject, claims.Subject)
			}
			if got.Email != claims.Email {
				t.Errorf("Email = %q, want %q", got.Email, claims.Email)
			}
			if !slices.Equal(got.Roles, claims.Roles) {
				t.Errorf("Roles = %v, want %v", got.Roles, claims.Roles)
			}
			if !got.ExpiresAt.Equal(claims.ExpiresAt) {
				t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, claims.ExpiresAt)
			}
		}
	})

	t.Run("有効期限を過ぎたトークンはErrExpiredTokenになること", func(t *testing.T) {
		t.Parallel()

		token, err := Sign(claims, testSecret)
		if err != nil {
			t.Fatalf("Sign()でエラーが発生: %v", err)
		}

		v := NewValidator(testSecret, WithClock(fixedClock(claims.ExpiresAt.Add(time.Second))))
		if _, err := v.Validate(token); !errors.Is(err, ErrExpiredToken) {
			t.Errorf("Validate() error = %v, want ErrExpiredToken", err)
		}
	})

	t.Run("異なるシークレットではErrInvalidSignatureになること", func(t *testing.T) {
		t.Parallel()

		token, err := Sign(claims, testSecret)
		if err != nil {
			t.Fatalf("Sign()でエラーが発生: %v", err)
		}

		v := NewValidator("wrong-secret", WithClock(fixedClock(issued)))
		if _, err := v.Validate(token); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Validate() error = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("HS256以外のアルゴリズムはErrInvalidSignatureになること", func(t *testing.T) {
		t.Parallel()

		token := signMap(t, jwt.SigningMethodHS512, jwt.MapClaims{
			"sub":   "user-123",
			"email": "test@example.com",
			"roles": []string{"user"},
			"iat":   issued.Unix(),
			"exp":   issued.Add(time.Hour).Unix(),
		}, testSecret)

		v := NewValidator(testSecret, WithClock(fixedClock(issued)))
		if _, err := v.Validate(token); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Validate() error = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("形式が不正なトークンはErrMalformedTokenになること", func(t *testing.T) {
		t.Parallel()

		v := NewValidator(testSecret)
		for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
			if _, err := v.Validate(token); !errors.Is(err, ErrMalformedToken) {
				t.Errorf("Validate(%q) error = %v, want ErrMalformedToken", token, err)
			}
		}
	})

	t.Run("expがないトークンはErrMalformedTokenになること", func(t *testing.T) {
		t.Parallel()

		token := signMap(t, jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":   "user-123",
			"email": "test@example.com",
			"iat":   issued.Unix(),
		}, testSecret)

		v := NewValidator(testSecret, WithClock(fixedClock(issued)))
		if _, err := v.Validate(token); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Validate() error = %v, want ErrMalformedToken", err)
		}
	})

	t.Run("rolesがないトークンは空のロールで検証に成功すること", func(t *testing.T) {
		t.Parallel()

		token := signMap(t, jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":   "user-123",
			"email": "test@example.com",
			"iat":   issued.Unix(),
			"exp":   issued.Add(time.Hour).Unix(),
		}, testSecret)

		got, err := NewValidator(testSecret, WithClock(fixedClock(issued))).Validate(token)
		if err != nil {
			t.Fatalf("Validate()でエラーが発生: %v", err)
		}
		if got.Roles == nil || len(got.Roles) != 0 {
			t.Errorf("Roles = %#v, want 空のスライス", got.Roles)
		}
	})

	t.Run("空のシークレットはDefaultSecretとして扱われること", func(t *testing.T) {
		t.Parallel()

		token, err := Sign(claims, "")
		if err != nil {
			t.Fatalf("Sign()でエラーが発生: %v", err)
		}
		if _, err := NewValidator(DefaultSecret, WithClock(fixedClock(issued))).Validate(token); err != nil {
			t.Errorf("DefaultSecretでの検証に失敗: %v", err)
		}
	})
}

// TestSignWireFormat はトークンのペイロードのフィールド構成を検証する。
func TestSignWireFormat(t *testing.T) {
	t.Parallel()

	t.Run("ペイロードがsub/email/roles/iat/expのみで構成されること", func(t *testing.T) {
		t.Parallel()

		token, err := Sign(NewClaims("user-1", "a@example.com", nil, time.Now()), testSecret)
		if err != nil {
			t.Fatalf("Sign()でエラーが発生: %v", err)
		}

		mc := jwt.MapClaims{}
		parsed, _, err := jwt.NewParser().ParseUnverified(token, mc)
		if err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}
		if parsed.Method.Alg() != "HS256" {
			t.Errorf("署名アルゴリズム = %q, want %q", parsed.Method.Alg(), "HS256")
		}

		keys := make([]string, 0, len(mc))
		for k := range mc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		want := []string{"email", "exp", "iat", "roles", "sub"}
		if !slices.Equal(keys, want) {
			t.Errorf("keys = %v, want %v", keys, want)
		}
		if roles, ok := mc["roles"].([]any); !ok || len(roles) != 0 {
			t.Errorf("roles = %#v, want 空配列", mc["roles"])
		}
	})
}

// TestCurrentIdentity はリクエストスコープの認証済みID取得を検証する。
func TestCurrentIdentity(t *testing.T) {
	t.Parallel()

	t.Run("設定したクレームを取得できること", func(t *testing.T) {
		t.Parallel()

		want := NewClaims("user-1", "a@example.com", []string{"user"}, time.Now())
		ctx := WithIdentity(t.Context(), want)

		got, err := CurrentIdentity(ctx)
		if err != nil {
			t.Fatalf("CurrentIdentity()でエラーが発生: %v", err)
		}
		if got.Subject != want.Subject {
			t.Errorf("Subject = %q, want %q", got.Subject, want.Subject)
		}
	})

	t.Run("未設定の場合はErrUnauthenticatedを返すこと", func(t *testing.T) {
		t.Parallel()

		if _, err := CurrentIdentity(t.Context()); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("CurrentIdentity() error = %v, want ErrUnauthenticated", err)
		}
	})
}
