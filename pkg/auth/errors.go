package auth

import "errors"

var (
	// ErrUnauthenticated は認証済みIDが存在しないことを表す。境界では401に対応する。
	ErrUnauthenticated = errors.New("認証されていません")
	// ErrForbidden は認証済みだがロールが不足していることを表す。境界では403に対応する。
	ErrForbidden = errors.New("権限がありません")
	// ErrInvalidSignature はトークンの署名または署名アルゴリズムが不正であることを表す。
	ErrInvalidSignature = errors.New("トークンの署名が不正です")
	// ErrExpiredToken はトークンの有効期限が切れていることを表す。
	ErrExpiredToken = errors.New("トークンの有効期限が切れています")
	// ErrMalformedToken はトークンの形式が不正、または必須クレームが欠落していることを表す。
	ErrMalformedToken = errors.New("トークンの形式が不正です")
	// ErrHashFormat は保存されたパスワードハッシュを解釈できないことを表す。
	// データ破損を意味するため、呼び出し側で回復せずサーバーエラーとして扱う。
	ErrHashFormat = errors.New("パスワードハッシュの形式が不正です")
)
