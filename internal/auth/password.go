package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength はパスワードログインで受け付ける最小文字数。
const MinPasswordLength = 8

// oauthPasswordPrefix はOAuthで作成したユーザーのパスワードハッシュの接頭辞。
// bcrypt形式ではないため、どのパスワードとも一致しない。
const oauthPasswordPrefix = "oauth:"

// dummyHash はユーザー不在時にも同等のbcrypt比較を行うためのハッシュ。
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("skibase-timing-equalizer"), bcrypt.DefaultCost)

// HashPassword はbcryptでパスワードをハッシュ化する。
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword はハッシュとパスワードが一致するかを返す。
// hashが空またはbcrypt形式でない場合もダミーの比較を行い、
// 応答時間でユーザーの有無を推測されないようにする。
func CheckPassword(hash, password string) bool {
	if !strings.HasPrefix(hash, "$2") {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// unusablePasswordHash はパスワードログインに使えないランダムなハッシュ値を生成する。
func unusablePasswordHash() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random password hash: %w", err)
	}
	return oauthPasswordPrefix + hex.EncodeToString(b), nil
}
