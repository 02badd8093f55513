package helper

import (
	"database/sql"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// BuildFullURL 根据 host 和相对路径拼接完整 URL
// - 如果 path 为空，返回空字符串
// - 如果 path 已经是 http/https 开头，原样返回
// - 否则使用 host 和 path 进行拼接，避免重复斜杠
func BuildFullURL(host, path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	p := strings.TrimSpace(path)
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	h := strings.TrimRight(strings.TrimSpace(host), "/")
	p = strings.TrimLeft(p, "/")
	if h == "" {
		return p
	}
	return h + "/" + p
}

func isDigit(r rune) bool {
	return unicode.IsDigit(r)
}

// CtypeDigit 判断字符串是否全部为数字（round_id 等参数校验）
func CtypeDigit(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return true
}

func IsEmptyString(str string) bool {

	s := strings.TrimSpace(str)
	if len(s) == 0 {
		return true
	}

	return false
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func CheckPassword(input string, hashed string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(input))
	return err == nil
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
