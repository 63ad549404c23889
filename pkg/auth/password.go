package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost はパスワードハッシュのbcryptコスト（固定値）。
const BcryptCost = 10

// Hasher はbcryptによるパスワードのハッシュ化と照合を行う。
type Hasher struct{}

// NewHasher は新しいHasherを生成する。
func NewHasher() *Hasher {
	return &Hasher{}
}

// Hash は平文パスワードからソルト付きのbcryptハッシュを生成する。
func (h *Hasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}
	return string(digest), nil
}

// Verify は平文パスワードがハッシュと一致するかを判定する。
// 不一致の場合は false, nil を返す。ハッシュ自体を解釈できない場合は ErrHashFormat を返す。
func (h *Hasher) Verify(plaintext, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrHashFormat, err)
	}
}
