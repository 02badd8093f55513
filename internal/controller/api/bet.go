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

var newBetService = service.NewBetService

type BetController struct{ beego.Controller }

// 投注请求参数
type BetRequestParam struct {
	PickNumber int    `json:"pick_number"` // 投注号码 1..52
	BetAmount  string `json:"bet_amount"`  // 投注金额
	/*
		幂等键：客户端生成并随请求传入，用于在网络重试/超时重发/服务端重试时保证“同一业务请求只生效一次”。
		使用约定：
		- 对于“同一次下注”的所有重试，请传相同的 idempotency_key；
		- 业务语义不同（如金额/号码/期次不同）的请求必须使用不同的 key；
		- 建议生成方式：UUID（推荐）或对 user_id+round_id+pick_number+bet_amount 做哈希；
		- 建议在客户端将 key 与该次操作绑定并在超时/失败后复用。
		服务端幂等保证（多层防护）：
		1) Redis 进行中锁（约45秒）：并发重复请求直接返回 202，并携带 Retry-After: 1；
		2) MySQL 唯一键：在事务内先插入 idempotency_keys(idempotency_key)，若已存在则视为重复请求，返回首次请求的结果；
		3) 结果缓存：首次成功结果会写入 Redis（短期缓存），后续重复可直接读缓存快速返回。
		错误语义：
		- 并发重复（正在处理）：HTTP 202 + { code:2001, message:"duplicate request in flight" }
		- 历史重复（已处理完）：返回首次的 bill_no 与余额，不算错误。
	*/
	IdempotencyKey string `json:"idempotency_key"`
}

// Bet 处理投注接口：POST /api/bet（需登录）
func (c *BetController) Bet() {
	// 1) 解析入参与基本校验
	// 这里必须要对业务参数严格校验，后续service不再重复校验
	bp, ok, msg := helper.ParseAndValidateBet(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)

	// 用户身份由认证中间件注入
	userID := helper.GetAuthUserID(c.Ctx)
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	svc := newBetService()
	out, err := svc.PlaceBet(c.Ctx.Request.Context(), service.BetInput{
		UserID:         userID,
		PickNumber:     bp.PickNumber,
		BetAmount:      bp.BetAmount,
		IdempotencyKey: bp.IdempotencyKey,
		TraceID:        traceID,
	})
	if err != nil {
		// MySQL 唯一键冲突
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		// 重复请求进行中
		if errors.Is(err, service.ErrDuplicateInFlight) {
			response.Accepted(&c.Controller, "重复请求进行中，请稍后重试", traceID)
			return
		}
		// 当前无可投注期次
		if errors.Is(err, service.ErrRoundNotOpen) {
			response.Conflict(&c.Controller, response.CodeRoundNotOpen, traceID)
			return
		}
		// 投注已截止（已过当日开奖时间）
		if errors.Is(err, service.ErrBettingClosed) {
			response.Conflict(&c.Controller, response.CodeBettingClosed, traceID)
			return
		}
		// 号码超出 1..52
		if errors.Is(err, service.ErrInvalidPickNumber) {
			response.Error(&c.Controller, 400, response.CodeInvalidPickNumber, traceID)
			return
		}
		// 余额不足
		if errors.Is(err, service.ErrInsufficientBalance) {
			response.Error(&c.Controller, 400, response.CodeInsufficientBalance, traceID)
			return
		}
		// 账户被禁用
		if errors.Is(err, service.ErrAccountDisabled) {
			response.Error(&c.Controller, 403, response.CodeAccountDisabled, traceID)
			return
		}
		// 金额校验失败等参数类错误
		errMsg := err.Error()
		if strings.Contains(errMsg, "invalid bet amount") ||
			strings.Contains(errMsg, "bet amount must be positive") ||
			strings.Contains(errMsg, "below minimum limit") ||
			strings.Contains(errMsg, "exceeds maximum limit") {
			response.BadRequest(&c.Controller, errMsg, traceID)
			return
		}
		// 系统错误
		response.InternalError(&c.Controller, traceID)
		return
	}

	// 成功响应
	response.Success(&c.Controller, map[string]interface{}{
		"bill_no":       out.BillNo,
		"round_id":      out.RoundID,
		"pick_number":   out.PickNumber,
		"payout_mult":   out.PayoutMult,
		"remain_amount": out.RemainAmount,
	}, traceID)
}
