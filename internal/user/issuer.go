package user

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/storefront/pkg/auth"
)

var (
	// ErrIdentityExists は登録しようとしたメールアドレスが既に使用されていることを表す。
	ErrIdentityExists = errors.New("このメールアドレスは既に登録されています")
	// ErrInvalidCredentials はログインに失敗したことを表す。
	// メールアドレスが存在しない場合とパスワードが一致しない場合を区別しない。
	ErrInvalidCredentials = errors.New("メールアドレスまたはパスワードが正しくありません")
)

// CredentialStore はIssuerが使用するユーザーの永続化先。
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, email, name, passwordHash string) (*User, error)
}

// PasswordHasher はパスワードのハッシュ化と照合を行う。
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) (bool, error)
}

// PublicUser はレスポンスに含めるユーザー情報。パスワードハッシュとロールは含めない。
type PublicUser struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Name は表示名。
	Name string `json:"name"`
}

// AuthResult は登録またはログインの結果。
type AuthResult struct {
	// Token は発行したJWT。
	Token string `json:"token"`
	// User は認証されたユーザー。
	User PublicUser `json:"user"`
}

// Issuer はユーザー登録とログインを行い、トークンを発行する。
type Issuer struct {
	store  CredentialStore
	hasher PasswordHasher
	secret string
	now    func() time.Time

	// dummyOnce と dummyDigest は未登録のメールアドレスでの照合に使用する。
	dummyOnce   sync.Once
	dummyDigest string
}

// IssuerOption はIssuerの設定を変更する。
type IssuerOption func(*Issuer)

// WithIssuerClock はトークン発行時刻の取得に使用する時計を差し替える。
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer は新しいIssuerを生成する。secretが空の場合は auth.DefaultSecret を使用する。
func NewIssuer(store CredentialStore, hasher PasswordHasher, secret string, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		store:  store,
		hasher: hasher,
		secret: auth.ResolveSecret(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Register は新しいユーザーを作成してトークンを発行する。
// メールアドレスが既に存在する場合は ErrIdentityExists を返す。
// 同時に同じメールアドレスで登録された場合も、一意制約により一方のみ成功する。
func (i *Issuer) Register(ctx context.Context, email, name, password string) (AuthResult, error) {
	_, err := i.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return AuthResult{}, ErrIdentityExists
	case !errors.Is(err, ErrUserNotFound):
		return AuthResult{}, err
	}

	digest, err := i.hasher.Hash(password)
	if err != nil {
		return AuthResult{}, err
	}

	u, err := i.store.Create(ctx, email, name, digest)
	if errors.Is(err, ErrDuplicateIdentity) {
		return AuthResult{}, ErrIdentityExists
	}
	if err != nil {
		return AuthResult{}, err
	}
	return i.issue(u)
}

// Login はメールアドレスとパスワードを照合してトークンを発行する。
// 照合に失敗した場合は理由によらず ErrInvalidCredentials を返す。
func (i *Issuer) Login(ctx context.Context, email, password string) (AuthResult, error) {
	u, err := i.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		// 応答時間でメールアドレスの有無が分からないよう、登録済みの場合と同じ照合を行う
		if digest := i.dummy(); digest != "" {
			_, _ = i.hasher.Verify(password, digest)
		}
		return AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, err
	}

	ok, err := i.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return AuthResult{}, err
	}
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}
	return i.issue(u)
}

// dummy は照合用のダミーハッシュを返す。ハッシュ化に失敗した場合は空文字を返す。
func (i *Issuer) dummy() string {
	i.dummyOnce.Do(func() {
		digest, err := i.hasher.Hash("storefront-dummy-password")
		if err == nil {
			i.dummyDigest = digest
		}
	})
	return i.dummyDigest
}

// issue はユーザーのクレームを作成して署名する。
func (i *Issuer) issue(u *User) (AuthResult, error) {
	roles := u.Roles
	if len(roles) == 0 {
		roles = []string{auth.DefaultRole}
	}

	token, err := auth.Sign(auth.NewClaims(u.ID, u.Email, roles, i.now()), i.secret)
	if err != nil {
		return AuthResult{}, fmt.Errorf("トークンの発行に失敗: %w", err)
	}
	return AuthResult{
		Token: token,
		User:  PublicUser{ID: u.ID, Email: u.Email, Name: u.Name},
	}, nil
}
