package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 金额格式校验：非负，最多两位小数（预编译正则）
var moneyRe = regexp.MustCompile(`^(?:0|[1-9]\d*)(?:\.\d{1,2})?$`)

// IsMoneyFormat 判断金额格式
func IsMoneyFormat(s string) bool {
	return moneyRe.MatchString(strings.TrimSpace(s))
}

// 邮箱格式校验（宽松，最终以验证邮件为准）
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsEmailFormat 判断邮箱格式
func IsEmailFormat(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// GetAuthUserID 提取认证中间件注入的用户ID（未认证返回 0）
func GetAuthUserID(ctx *beegocontext.Context) int64 {
	if v := ctx.Input.GetData("user_id"); v != nil {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// parseByContentType 按 Content-Type 选择解析函数，减少重复 if/else 分支
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// -------- Bet helpers --------

// BetParsed 为解析后的投注入参（与控制器/服务层解耦）
// 用户身份来自 JWT，不从请求体读取
type BetParsed struct {
	PickNumber     int    `json:"pick_number"`
	BetAmount      string `json:"bet_amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ParseBetFromJSON 解析 JSON 到 BetParsed。失败返回 false 与错误消息。
func ParseBetFromJSON(r io.Reader) (BetParsed, bool, string) {
	var out BetParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return BetParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

// ParseBetFromForm 从表单读取字段并做强校验，返回 BetParsed。失败返回 false 与可读错误信息。
func ParseBetFromForm(ctx *beegocontext.Context) (BetParsed, bool, string) {
	var out BetParsed

	pnStr := strings.TrimSpace(ctx.Input.Query("pick_number"))
	if pnStr == "" {
		return BetParsed{}, false, "pick_number required"
	}
	pn, err := strconv.Atoi(pnStr)
	if err != nil {
		return BetParsed{}, false, "pick_number must be integer"
	}
	out.PickNumber = pn

	out.BetAmount = strings.TrimSpace(ctx.Input.Query("bet_amount"))
	if out.BetAmount == "" || !IsMoneyFormat(out.BetAmount) {
		return BetParsed{}, false, "bet_amount must be numeric with up to 2 decimals"
	}

	out.IdempotencyKey = strings.TrimSpace(ctx.Input.Query("idempotency_key"))
	if out.IdempotencyKey == "" {
		return BetParsed{}, false, "idempotency_key required"
	}

	return out, true, ""
}

// ValidateBet 对通用字段做二次校验（适用于 JSON 与 FORM）。失败返回 false 与错误消息。
func ValidateBet(in *BetParsed) (bool, string) {
	if strings.TrimSpace(in.BetAmount) == "" || in.IdempotencyKey == "" {
		return false, "missing or invalid fields"
	}
	// 额外长度保护，避免异常超长输入
	if len(in.IdempotencyKey) > 64 || len(in.BetAmount) > 32 {
		return false, "invalid request"
	}
	// 号码范围校验
	if in.PickNumber < 1 || in.PickNumber > 52 {
		return false, "pick_number must be between 1 and 52"
	}
	// 金额校验
	if !IsMoneyFormat(in.BetAmount) {
		return false, "bet_amount must be numeric with up to 2 decimals"
	}
	return true, ""
}

// ParseAndValidateBet 按 Content-Type 自动解析并做统一校验
func ParseAndValidateBet(ctx *beegocontext.Context) (BetParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseBetFromJSON, ParseBetFromForm)
	if !ok {
		return BetParsed{}, false, msg
	}
	if ok, msg := ValidateBet(&out); !ok {
		return BetParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Wallet helpers --------

// DepositParsed 解析后的充值入参
type DepositParsed struct {
	Amount         string `json:"amount"`
	Method         string `json:"method"` // instant / yoco
	IdempotencyKey string `json:"idempotency_key"`
}

func ParseDepositFromJSON(r io.Reader) (DepositParsed, bool, string) {
	var out DepositParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return DepositParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseDepositFromForm(ctx *beegocontext.Context) (DepositParsed, bool, string) {
	var out DepositParsed
	out.Amount = strings.TrimSpace(ctx.Input.Query("amount"))
	out.Method = strings.TrimSpace(ctx.Input.Query("method"))
	out.IdempotencyKey = strings.TrimSpace(ctx.Input.Query("idempotency_key"))
	return out, true, ""
}

func ValidateDeposit(in *DepositParsed) (bool, string) {
	in.Amount = strings.TrimSpace(in.Amount)
	in.Method = strings.ToLower(strings.TrimSpace(in.Method))
	if in.Method == "" {
		in.Method = "instant"
	}
	if in.Method != "instant" && in.Method != "yoco" {
		return false, "method must be instant|yoco"
	}
	if in.Amount == "" || !IsMoneyFormat(in.Amount) {
		return false, "amount must be numeric with up to 2 decimals"
	}
	if in.IdempotencyKey == "" {
		return false, "idempotency_key required"
	}
	if len(in.IdempotencyKey) > 64 || len(in.Amount) > 32 {
		return false, "invalid request"
	}
	return true, ""
}

// ParseAndValidateDeposit 按 Content-Type 自动解析并校验
func ParseAndValidateDeposit(ctx *beegocontext.Context) (DepositParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseDepositFromJSON, ParseDepositFromForm)
	if !ok {
		return DepositParsed{}, false, msg
	}
	if ok, msg := ValidateDeposit(&out); !ok {
		return DepositParsed{}, false, msg
	}
	return out, true, ""
}

// WithdrawParsed 解析后的提现入参
type WithdrawParsed struct {
	Amount         string `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

func ParseWithdrawFromJSON(r io.Reader) (WithdrawParsed, bool, string) {
	var out WithdrawParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return WithdrawParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseWithdrawFromForm(ctx *beegocontext.Context) (WithdrawParsed, bool, string) {
	var out WithdrawParsed
	out.Amount = strings.TrimSpace(ctx.Input.Query("amount"))
	out.IdempotencyKey = strings.TrimSpace(ctx.Input.Query("idempotency_key"))
	return out, true, ""
}

func ValidateWithdraw(in *WithdrawParsed) (bool, string) {
	in.Amount = strings.TrimSpace(in.Amount)
	if in.Amount == "" || !IsMoneyFormat(in.Amount) {
		return false, "amount must be numeric with up to 2 decimals"
	}
	if in.IdempotencyKey == "" {
		return false, "idempotency_key required"
	}
	if len(in.IdempotencyKey) > 64 || len(in.Amount) > 32 {
		return false, "invalid request"
	}
	return true, ""
}

// ParseAndValidateWithdraw 按 Content-Type 自动解析并校验
func ParseAndValidateWithdraw(ctx *beegocontext.Context) (WithdrawParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseWithdrawFromJSON, ParseWithdrawFromForm)
	if !ok {
		return WithdrawParsed{}, false, msg
	}
	if ok, msg := ValidateWithdraw(&out); !ok {
		return WithdrawParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Auth helpers --------

// RegisterParsed 解析后的注册入参
type RegisterParsed struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func ParseRegisterFromJSON(r io.Reader) (RegisterParsed, bool, string) {
	var out RegisterParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return RegisterParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseRegisterFromForm(ctx *beegocontext.Context) (RegisterParsed, bool, string) {
	var out RegisterParsed
	out.Email = strings.TrimSpace(ctx.Input.Query("email"))
	out.Password = ctx.Input.Query("password")
	out.FirstName = strings.TrimSpace(ctx.Input.Query("first_name"))
	out.LastName = strings.TrimSpace(ctx.Input.Query("last_name"))
	out.Phone = strings.TrimSpace(ctx.Input.Query("phone"))
	return out, true, ""
}

func ValidateRegister(in *RegisterParsed) (bool, string) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if !IsEmailFormat(in.Email) {
		return false, "invalid email"
	}
	if len(in.Email) > 128 {
		return false, "invalid email"
	}
	if len(in.Password) < 8 || len(in.Password) > 72 {
		return false, "password must be 8-72 characters"
	}
	if len(in.FirstName) > 64 || len(in.LastName) > 64 || len(in.Phone) > 32 {
		return false, "invalid request"
	}
	return true, ""
}

// ParseAndValidateRegister 按 Content-Type 自动解析并校验
func ParseAndValidateRegister(ctx *beegocontext.Context) (RegisterParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseRegisterFromJSON, ParseRegisterFromForm)
	if !ok {
		return RegisterParsed{}, false, msg
	}
	if ok, msg := ValidateRegister(&out); !ok {
		return RegisterParsed{}, false, msg
	}
	return out, true, ""
}

// LoginParsed 解析后的登录入参
type LoginParsed struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func ParseLoginFromJSON(r io.Reader) (LoginParsed, bool, string) {
	var out LoginParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return LoginParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseLoginFromForm(ctx *beegocontext.Context) (LoginParsed, bool, string) {
	var out LoginParsed
	out.Email = strings.TrimSpace(ctx.Input.Query("email"))
	out.Password = ctx.Input.Query("password")
	return out, true, ""
}

func ValidateLogin(in *LoginParsed) (bool, string) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if !IsEmailFormat(in.Email) {
		return false, "invalid email"
	}
	if in.Password == "" || len(in.Password) > 72 {
		return false, "password required"
	}
	return true, ""
}

// ParseAndValidateLogin 按 Content-Type 自动解析并校验
func ParseAndValidateLogin(ctx *beegocontext.Context) (LoginParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseLoginFromJSON, ParseLoginFromForm)
	if !ok {
		return LoginParsed{}, false, msg
	}
	if ok, msg := ValidateLogin(&out); !ok {
		return LoginParsed{}, false, msg
	}
	return out, true, ""
}
