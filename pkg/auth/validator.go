package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Validator は共有秘密鍵のみでトークンを検証する。
// ストアやネットワークには一切アクセスしないため、どのサービスからも独立して使用できる。
type Validator struct {
	// secret は署名検証用の秘密鍵。
	secret []byte
	// now は現在時刻を返す関数。テスト時に差し替える。
	now func() time.Time
}

// ValidatorOption はValidatorの設定を変更する。
type ValidatorOption func(*Validator)

// WithClock は有効期限の判定に使用する時刻関数を設定する。
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// NewValidator は新しいValidatorを生成する。secretが空の場合はDefaultSecretを使用する。
func NewValidator(secret string, opts ...ValidatorOption) *Validator {
	v := &Validator{
		secret: []byte(ResolveSecret(secret)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate はトークンの署名と有効期限を検証し、埋め込まれたクレームを返す。
// exp == now の場合は有効として扱う。
func (v *Validator) Validate(tokenString string) (Claims, error) {
	wc := &wireClaims{}
	_, err := jwt.ParseWithClaims(tokenString, wc, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// 有効期限は境界を含めて自前で判定する
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return Claims{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		default:
			return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
	}

	if wc.ExpiresAt == nil || wc.IssuedAt == nil {
		return Claims{}, fmt.Errorf("%w: iatまたはexpがありません", ErrMalformedToken)
	}
	if v.now().Unix() > wc.ExpiresAt.Unix() {
		return Claims{}, ErrExpiredToken
	}

	roles := wc.Roles
	if roles == nil {
		roles = []string{}
	}
	return Claims{
		Subject:   wc.Subject,
		Email:     wc.Email,
		Roles:     roles,
		IssuedAt:  wc.IssuedAt.Time,
		ExpiresAt: wc.ExpiresAt.Time,
	}, nil
}
