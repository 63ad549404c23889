package auth

import "context"

// identityKey は認証済みIDをコンテキストに格納するためのキーの型。
type identityKey struct{}

// WithIdentity は検証済みクレームをリクエストのコンテキストに設定する。
func WithIdentity(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, identityKey{}, claims)
}

// IdentityFrom はコンテキストから検証済みクレームを取得する。
func IdentityFrom(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(identityKey{}).(Claims)
	return claims, ok
}

// CurrentIdentity は現在のリクエストの認証済みIDを返す。
// 認証ガードを通過していないリクエストで呼び出した場合は ErrUnauthenticated を返す。
func CurrentIdentity(ctx context.Context) (Claims, error) {
	claims, ok := IdentityFrom(ctx)
	if !ok {
		return Claims{}, ErrUnauthenticated
	}
	return claims, nil
}
