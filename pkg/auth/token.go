package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenLifetime はトークンの有効期間。expは常にiat+TokenLifetimeとなる。
const TokenLifetime = 7 * 24 * time.Hour

// DefaultSecret はJWT_SECRETが未設定の場合に使用する署名用の秘密鍵。
// 既知の弱い値であり、開発環境以外では必ずJWT_SECRETを設定すること。
const DefaultSecret = "your-secret-key"

// DefaultRole は登録時に付与されるロール。
const DefaultRole = "user"

// ResolveSecret は署名用の秘密鍵を決定する。空文字列の場合はDefaultSecretを返す。
func ResolveSecret(secret string) string {
	if secret == "" {
		return DefaultSecret
	}
	return secret
}

// Claims はトークンに埋め込まれる認証情報。発行後は不変のスナップショットとして扱う。
type Claims struct {
	// Subject はユーザーID。
	Subject string
	// Email はユーザーのメールアドレス。
	Email string
	// Roles はユーザーのロール一覧。
	Roles []string
	// IssuedAt は発行日時。
	IssuedAt time.Time
	// ExpiresAt は有効期限。
	ExpiresAt time.Time
}

// NewClaims は発行時刻nowからTokenLifetime後に失効するクレームを生成する。
// 時刻はJWTの精度に合わせて秒単位に切り捨てる。
func NewClaims(subject, email string, roles []string, now time.Time) Claims {
	issuedAt := now.Truncate(time.Second)
	return Claims{
		Subject:   subject,
		Email:     email,
		Roles:     append([]string{}, roles...),
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(TokenLifetime),
	}
}

// HasAnyRole はクレームが指定ロールのいずれかを持つかを判定する。
func (c Claims) HasAnyRole(roles ...string) bool {
	for _, have := range c.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// wireClaims はトークンのペイロード。{sub, email, roles, iat, exp} の形でシリアライズされる。
type wireClaims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Sign はクレームをHS256で署名し、トークン文字列を返す。
func Sign(claims Claims, secret string) (string, error) {
	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	payload := wireClaims{
		Email: claims.Email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	signed, err := token.SignedString([]byte(ResolveSecret(secret)))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}
