package helper

import (
	"github.com/shopspring/decimal"
)

var (
	OneDecimal = decimal.NewFromInt(1)
)

// TrimDecimal decimal对象四舍五入到2位小数
// 使用 StringFixed(2) 避免截断导致的精度丢失问题
func TrimDecimal(val decimal.Decimal) string {
	return val.StringFixed(2)
}
