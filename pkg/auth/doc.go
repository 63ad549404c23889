// Package auth は全サービスで共有する認証の中核を提供する。
//
// パスワードのハッシュ化と照合、JWTクレームの生成と署名、共有秘密鍵による
// トークンのステートレス検証、リクエストスコープの認証済みIDの受け渡しを含む。
// トークン検証は発行元（userサービス）と通信せず、共有秘密鍵のみで完結する。
package auth
