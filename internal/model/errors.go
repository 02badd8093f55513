package model

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// IsDuplicateKeyError 判断是否为 MySQL 唯一键冲突错误（错误码 1062）
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}
