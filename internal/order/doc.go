// Package order はorderサービスの内部実装を提供する。
//
// 注文の作成・一覧・詳細取得とステータス更新を担当する。注文者は認証済みIDから決定し、
// 注文は注文者本人のみ参照できる。明細の商品はproductサービスに問い合わせて存在を確認する。
package order
