// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// orderサービスからproductサービスへの商品確認や、gatewayから各バックエンドへの
// リクエスト転送に使用する。呼び出し元のBearerトークンを伝播できる。
package httpclient
