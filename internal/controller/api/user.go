package api

import (
	"errors"
	"strconv"

	chelper "github.com/LeonMotaung/f2gbetting/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/auth"
	helper "github.com/LeonMotaung/f2gbetting/internal/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/common/response"
	infmysql "github.com/LeonMotaung/f2gbetting/internal/infra/mysql"
	"github.com/LeonMotaung/f2gbetting/internal/model"
	"github.com/LeonMotaung/f2gbetting/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	decimal "github.com/shopspring/decimal"
)

var newUserService = service.NewUserService

// UserController 账户接口：注册 / 登录 / 余额 / 注单 / 流水
type UserController struct{ beego.Controller }

// Register 注册：POST /api/user/register
func (c *UserController) Register() {
	rp, ok, msg := helper.ParseAndValidateRegister(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)
	out, err := newUserService().Register(c.Ctx.Request.Context(), service.RegisterInput{
		Email:     rp.Email,
		Password:  rp.Password,
		FirstName: rp.FirstName,
		LastName:  rp.LastName,
		Phone:     rp.Phone,
		TraceID:   traceID,
	})
	if err != nil {
		if err.Error() == "email already registered" {
			response.BadRequest(&c.Controller, "邮箱已注册", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// Login 登录：POST /api/user/login
func (c *UserController) Login() {
	lp, ok, msg := helper.ParseAndValidateLogin(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)
	out, err := newUserService().Login(c.Ctx.Request.Context(), service.LoginInput{
		Email:    lp.Email,
		Password: lp.Password,
		TraceID:  traceID,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Error(&c.Controller, 401, response.CodeInvalidCredentials, traceID)
			return
		}
		if errors.Is(err, auth.ErrAccountDisabled) {
			response.Error(&c.Controller, 403, response.CodeAccountDisabled, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// Balance 余额查询：GET /api/user/balance（需登录）
func (c *UserController) Balance() {
	traceID := helper.GetTraceID(c.Ctx)
	userID := helper.GetAuthUserID(c.Ctx)
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	account, err := model.GetAccountByID(c.Ctx.Request.Context(), infmysql.SQLX(), userID)
	if err != nil {
		if chelper.IsNoRows(err) {
			response.NotFound(&c.Controller, "账户不存在", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"user_id": account.UserID,
		"email":   account.Email,
		"balance": chelper.TrimDecimal(decimal.NewFromFloat(account.Balance)),
	}, traceID)
}

// Bets 投注记录查询：GET /api/user/bets?round_id=&limit=（需登录）
func (c *UserController) Bets() {
	traceID := helper.GetTraceID(c.Ctx)
	userID := helper.GetAuthUserID(c.Ctx)
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	roundID := c.GetString("round_id")
	limit, _ := strconv.Atoi(c.GetString("limit", "20"))

	records, err := model.ListUserBets(c.Ctx.Request.Context(), infmysql.SQLX(), userID, roundID, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"bets":  records,
		"count": len(records),
	}, traceID)
}

// Transactions 账变流水查询：GET /api/user/transactions?start=&end=&limit=（需登录）
// start/end 支持 "2006-01-02" 或 "2006-01-02 15:04:05"，缺省为最近 3 天
func (c *UserController) Transactions() {
	traceID := helper.GetTraceID(c.Ctx)
	userID := helper.GetAuthUserID(c.Ctx)
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	start, end := chelper.ParseTimeRange(c.GetString("start"), c.GetString("end"))
	limit, _ := strconv.Atoi(c.GetString("limit", "50"))

	records, err := model.ListUserTransactions(c.Ctx.Request.Context(), infmysql.SQLX(), userID, start, end, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"transactions": records,
		"count":        len(records),
	}, traceID)
}
