// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// ルートポリシー表に基づく認証・認可ガード、リクエストログ、パニックリカバリ、
// CORS設定など、gatewayと各バックエンドサービスで共通して使用するミドルウェアを含む。
package middleware
