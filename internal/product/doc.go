// Package product はproductサービスの内部実装を提供する。
//
// 商品カタログのCRUDを担当する。一覧と詳細は公開し、作成と更新はuserロール、
// 削除はadminロールを持つ利用者に限定する。
package product
