// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスで、リクエストを所有する内部サービスへ転送する。
// 転送前に内部サービスと同じポリシーで認証・認可を行い、拒否したリクエストは転送しない。
// 内部サービスも受け取ったトークンを自身で再検証する。
package gateway
