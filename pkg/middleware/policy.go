package middleware

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// RouteKey はルートを一意に識別するキー。PathはGinのFullPath（例: "/api/v1/orders/:id"）。
type RouteKey struct {
	// Method はHTTPメソッド。
	Method string
	// Path はルートのパスパターン。
	Path string
}

// Policy はルートごとの認証・認可ポリシー。
// 公開ルートはロールを持たない。Rolesが空の保護ルートは認証済みであれば誰でもアクセスできる。
type Policy struct {
	// public は認証を省略するかどうか。
	public bool
	// roles は許可するロールの集合。
	roles []string
}

// Public は認証不要の公開ルートのポリシーを返す。
func Public() Policy {
	return Policy{public: true}
}

// Authenticated は認証必須のルートのポリシーを返す。
// rolesを指定した場合、いずれかのロールを持つIDのみを許可する。
func Authenticated(roles ...string) Policy {
	return Policy{roles: append([]string{}, roles...)}
}

// IsPublic は公開ルートかどうかを返す。
func (p Policy) IsPublic() bool {
	return p.public
}

// RequiredRoles は許可するロールの一覧を返す。
func (p Policy) RequiredRoles() []string {
	return append([]string{}, p.roles...)
}

// PolicyTable はサービス起動時に構築する静的なルートポリシー表。
type PolicyTable map[RouteKey]Policy

// Lookup はルートのポリシーを返す。未登録のルートは認証必須として扱う。
func (t PolicyTable) Lookup(method, path string) Policy {
	if p, ok := t[RouteKey{Method: method, Path: path}]; ok {
		return p
	}
	return Authenticated()
}

// Verify は登録済みの全ルートにポリシーが定義されているかを確認する。
// 定義漏れがあればルート一覧を含むエラーを返す。
func (t PolicyTable) Verify(routes gin.RoutesInfo) error {
	var missing []string
	for _, r := range routes {
		if _, ok := t[RouteKey{Method: r.Method, Path: r.Path}]; !ok {
			missing = append(missing, r.Method+" "+r.Path)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("ルートポリシーが定義されていません: %s", strings.Join(missing, ", "))
}
