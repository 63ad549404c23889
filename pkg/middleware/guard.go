package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/storefront/pkg/auth"
)

// TokenValidator はBearerトークンを検証してクレームを返す。
type TokenValidator interface {
	Validate(token string) (auth.Claims, error)
}

const (
	// msgUnauthenticated は401応答の汎用メッセージ。失敗理由は含めない。
	msgUnauthenticated = "認証が必要です"
	// msgForbidden は403応答の汎用メッセージ。
	msgForbidden = "この操作を行う権限がありません"
)

// Guard はルートポリシーに従って認証・認可を行うGinミドルウェアを返す。
//
// 評価順は固定で、最初に失敗した段階でリクエストを中断する。
//  1. 公開ルートであれば認証を省略してハンドラを実行する
//  2. Bearerトークンを検証し、クレームをリクエストのコンテキストに設定する
//  3. ポリシーにロールが指定されていれば、いずれかのロールを持つことを確認する
func Guard(policies PolicyTable, validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 未定義のルートはGinの404応答に任せる
		if c.FullPath() == "" {
			c.Next()
			return
		}

		policy := policies.Lookup(c.Request.Method, c.FullPath())
		if policy.IsPublic() {
			c.Next()
			return
		}

		claims, err := authenticate(c.GetHeader("Authorization"), validator)
		if err != nil {
			abortWithAuthError(c, err)
			return
		}
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), claims))

		if err := authorize(claims, policy.RequiredRoles()); err != nil {
			abortWithAuthError(c, err)
			return
		}
		c.Next()
	}
}

// authenticate はAuthorizationヘッダーからBearerトークンを取り出して検証する。
// 検証の失敗理由は ErrUnauthenticated にラップして返す。
func authenticate(header string, validator TokenValidator) (auth.Claims, error) {
	if header == "" {
		return auth.Claims{}, auth.ErrUnauthenticated
	}
	token, ok := BearerToken(header)
	if !ok {
		return auth.Claims{}, errors.Join(auth.ErrUnauthenticated, errors.New("トークンがBearer形式ではありません"))
	}
	claims, err := validator.Validate(token)
	if err != nil {
		return auth.Claims{}, errors.Join(auth.ErrUnauthenticated, err)
	}
	return claims, nil
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func BearerToken(header string) (string, bool) {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", false
	}
	return fields[1], true
}

// authorize はクレームが要求ロールのいずれかを持つかを確認する。rolesが空なら常に許可する。
func authorize(claims auth.Claims, roles []string) error {
	if len(roles) == 0 || claims.HasAnyRole(roles...) {
		return nil
	}
	return auth.ErrForbidden
}

// abortWithAuthError はエラー種別に応じて401または403でリクエストを中断する。
// 詳細な理由はデバッグログにのみ出力する。
func abortWithAuthError(c *gin.Context, err error) {
	zerolog.Ctx(c.Request.Context()).Debug().
		Err(err).
		Str("method", c.Request.Method).
		Str("route", c.FullPath()).
		Msg("ガードがリクエストを拒否しました")

	if errors.Is(err, auth.ErrForbidden) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msgForbidden})
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthenticated})
}
