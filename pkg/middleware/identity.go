package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/storefront/pkg/auth"
)

// CurrentIdentity はGinコンテキストから認証済みIDを取得する。
// Guardの認証段階を通過していないリクエストでは auth.ErrUnauthenticated を返す。
func CurrentIdentity(c *gin.Context) (auth.Claims, error) {
	return auth.CurrentIdentity(c.Request.Context())
}

// RequireIdentity は認証済みIDを返す。存在しない場合は401を返してfalseを返す。
// ハンドラの先頭で使用する。
func RequireIdentity(c *gin.Context) (auth.Claims, bool) {
	claims, err := CurrentIdentity(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthenticated})
		return auth.Claims{}, false
	}
	return claims, true
}
