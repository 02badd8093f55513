package api

import (
	"errors"
	"strings"

	helper "github.com/LeonMotaung/f2gbetting/internal/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/common/response"
	"github.com/LeonMotaung/f2gbetting/internal/service"

	beego "github.com/beego/beego/v2/server/web"

	mysqlerr "github.com/go-sql-driver/mysql"
)

var newWalletService = service.NewWalletService

// WalletController 钱包接口：充值 / 提现 / 支付回跳
type WalletController struct{ beego.Controller }

// Deposit 充值：POST /api/wallet/deposit（需登录）
// method=instant 仅演示模式可用；method=yoco 返回收银台跳转地址
func (c *WalletController) Deposit() {
	dp, ok, msg := helper.ParseAndValidateDeposit(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)
	userID := helper.GetAuthUserID(c.Ctx)
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	out, err := newWalletService().Deposit(c.Ctx.Request.Context(), service.DepositInput{
		UserID:         userID,
		Amount:         dp.Amount,
		Method:         dp.Method,
		IdempotencyKey: dp.IdempotencyKey,
		TraceID:        traceID,
	})
	if err != nil {
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		if errors.Is(err, service.ErrDepositDisabled) {
			response.Error(&c.Controller, 403, response.CodeForbidden, traceID)
			return
		}
		if errors.Is(err, service.ErrDepositOutOfRange) {
			response.BadRequest(&c.Controller, "充值金额超出限额", traceID)
			return
		}
		errMsg := err.Error()
		if strings.Contains(errMsg, "invalid deposit amount") ||
			strings.Contains(errMsg, "duplicate deposit request") {
			response.BadRequest(&c.Controller, errMsg, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// Withdraw 提现申请：POST /api/wallet/withdraw（需登录，人工审核）
func (c *WalletController) Withdraw() {
	wp, ok, msg := helper.ParseAndValidateWithdraw(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)
	userID := helper.GetAuthUserID(c.Ctx)
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	out, err := newWalletService().Withdraw(c.Ctx.Request.Context(), service.WithdrawInput{
		UserID:         userID,
		Amount:         wp.Amount,
		IdempotencyKey: wp.IdempotencyKey,
		TraceID:        traceID,
	})
	if err != nil {
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		if errors.Is(err, service.ErrDuplicateInFlight) {
			response.Accepted(&c.Controller, "重复请求进行中，请稍后重试", traceID)
			return
		}
		if errors.Is(err, service.ErrInsufficientBalance) {
			response.Error(&c.Controller, 400, response.CodeInsufficientBalance, traceID)
			return
		}
		if errors.Is(err, service.ErrAccountDisabled) {
			response.Error(&c.Controller, 403, response.CodeAccountDisabled, traceID)
			return
		}
		if errors.Is(err, service.ErrWithdrawTooSmall) {
			response.BadRequest(&c.Controller, "提现金额低于最低限额", traceID)
			return
		}
		if strings.Contains(err.Error(), "invalid withdrawal amount") {
			response.BadRequest(&c.Controller, err.Error(), traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// DepositSuccess 收银台支付成功回跳：GET /api/wallet/deposit/success?bill_no=
// 幂等：重复回跳不会重复入账
func (c *WalletController) DepositSuccess() {
	traceID := helper.GetTraceID(c.Ctx)
	billNo := c.GetString("bill_no")
	if billNo == "" {
		c.CustomAbort(400, "bill_no is required")
		return
	}

	if err := newWalletService().ConfirmDeposit(c.Ctx.Request.Context(), billNo, traceID); err != nil {
		if errors.Is(err, service.ErrTxNotFound) {
			c.CustomAbort(404, "deposit not found")
			return
		}
		if errors.Is(err, service.ErrTxNotPending) {
			c.CustomAbort(409, "deposit not pending")
			return
		}
		c.CustomAbort(500, "confirm deposit failed")
		return
	}

	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("payment received"))
}

// DepositCancel 收银台取消回跳：GET /api/wallet/deposit/cancel?bill_no=
// 注单保持 pending，不做状态流转（用户可重新发起）
func (c *WalletController) DepositCancel() {
	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("payment cancelled"))
}

// DepositFailure 收银台失败回跳：GET /api/wallet/deposit/failure?bill_no=
func (c *WalletController) DepositFailure() {
	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("payment failed"))
}
