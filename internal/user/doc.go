// Package user はuserサービスの内部実装を提供する。
//
// システムで唯一トークンを発行するサービスで、ユーザー登録とログインを担当する。
// パスワードはbcryptでハッシュ化して保存し、認証に成功するとJWTを返す。
// 発行したトークンは他のサービスと同じく、自身のガードで検証してから処理を行う。
//
// 主な機能:
//   - ユーザー登録（POST /auth/register）
//   - ログイン（POST /auth/login）
//   - 認証済みユーザーのプロフィール取得（GET /api/v1/users/me）
package user
