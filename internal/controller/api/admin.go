package api

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/LeonMotaung/f2gbetting/common"
	helper "github.com/LeonMotaung/f2gbetting/internal/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/common/response"
	infmysql "github.com/LeonMotaung/f2gbetting/internal/infra/mysql"
	"github.com/LeonMotaung/f2gbetting/internal/model"
	"github.com/LeonMotaung/f2gbetting/internal/oracle"
	"github.com/LeonMotaung/f2gbetting/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

var newResolveService = service.NewResolveService

// AdminController 运营后台接口（AdminAuthFilter 保护）
// 统计口径为全量表聚合，量级可控（单机日彩），暂不分库分表
type AdminController struct{ beego.Controller }

// Stats 平台统计：GET /api/admin/stats
func (c *AdminController) Stats() {
	traceID := helper.GetTraceID(c.Ctx)
	db := infmysql.SQLX()

	totalAccounts, err := common.Count(db, "accounts")
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	totalBets, err := common.CountInfo(db, "transactions", "id",
		g.C("tx_type").Eq(model.TxTypeBet))
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	betTurnover, err := common.SumInfo(db, "transactions", "amount",
		g.C("tx_type").Eq(model.TxTypeBet),
		g.C("status").Eq(model.TxStatusCompleted))
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	totalPayout, err := common.SumInfo(db, "transactions", "amount",
		g.C("tx_type").Eq(model.TxTypeWin),
		g.C("status").Eq(model.TxStatusCompleted))
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	pendingWithdrawals, err := common.CountInfo(db, "transactions", "id",
		g.C("tx_type").Eq(model.TxTypeWithdrawal),
		g.C("status").Eq(model.TxStatusPending))
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	pendingWithdrawAmount, err := common.SumInfo(db, "transactions", "amount",
		g.C("tx_type").Eq(model.TxTypeWithdrawal),
		g.C("status").Eq(model.TxStatusPending))
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	completedRounds, err := common.Count(db, "game_rounds",
		g.C("status").Eq(model.RoundStatusCompleted))
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	// 日/周/月口径均按业务时区（created_at 为毫秒时间戳）
	now := time.Now()
	dayStart, dayEnd := common.GetTodayRange(now)
	todayTurnover, err := sumBetTurnover(db, dayStart, dayEnd)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	weekStart, weekEnd := common.GetWeekRange(now)
	weekTurnover, err := sumBetTurnover(db, weekStart, weekEnd)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	monthStart, monthEnd := common.GetMonthRange(now)
	monthTurnover, err := sumBetTurnover(db, monthStart, monthEnd)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"total_accounts":          totalAccounts,
		"total_bets":              totalBets,
		"bet_turnover":            betTurnover,
		"total_payout":            totalPayout,
		"pending_withdrawals":     pendingWithdrawals,
		"pending_withdraw_amount": pendingWithdrawAmount,
		"completed_rounds":        completedRounds,
		"today_turnover":          todayTurnover,
		"week_turnover":           weekTurnover,
		"month_turnover":          monthTurnover,
	}, traceID)
}

// sumBetTurnover 统计 [startSec, endSec) 内已完成投注的流水
func sumBetTurnover(db *sqlx.DB, startSec, endSec int64) (float64, error) {
	return common.SumInfo(db, "transactions", "amount",
		g.C("tx_type").Eq(model.TxTypeBet),
		g.C("status").Eq(model.TxStatusCompleted),
		g.C("created_at").Gte(startSec*1000),
		g.C("created_at").Lt(endSec*1000))
}

// withdrawRow 提现列表行（字段列表由 db tag 反射生成）
type withdrawRow struct {
	ID           int64   `db:"id" json:"id"`
	UserID       int64   `db:"user_id" json:"user_id"`
	Amount       float64 `db:"amount" json:"amount"`
	Status       int8    `db:"status" json:"status"`
	BillNo       string  `db:"bill_no" json:"bill_no"`
	WithdrawInfo string  `db:"withdraw_info" json:"withdraw_info"`
	TraceID      string  `db:"trace_id" json:"trace_id"`
	CreatedAt    int64   `db:"created_at" json:"created_at"`
}

// PendingWithdrawals 待审核提现列表：GET /api/admin/withdrawals?limit=
func (c *AdminController) PendingWithdrawals() {
	traceID := helper.GetTraceID(c.Ctx)

	limit, _ := strconv.Atoi(c.GetString("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var rows []withdrawRow
	err := common.SelectAllCtx(c.Ctx.Request.Context(), &rows, common.QueryArg{
		Db:     infmysql.SQLX(),
		Table:  "transactions",
		Fields: common.EnumFields(withdrawRow{}),
		Ex: []exp.Expression{
			g.C("tx_type").Eq(model.TxTypeWithdrawal),
			g.C("status").Eq(model.TxStatusPending),
		},
		Order: []exp.OrderedExpression{g.C("created_at").Asc()},
		Limit: uint(limit),
	})
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"withdrawals": rows,
		"count":       len(rows),
	}, traceID)
}

// RoundBets 期次投注分布：GET /api/admin/rounds/:round_id/bets
// 每个号码的投注总额与笔数，用于敞口监控
func (c *AdminController) RoundBets() {
	traceID := helper.GetTraceID(c.Ctx)

	roundID := c.Ctx.Input.Param(":round_id")
	if roundID == "" {
		response.BadRequest(&c.Controller, "round_id is required", traceID)
		return
	}

	bets, err := model.ListRoundBets(c.Ctx.Request.Context(), infmysql.SQLX(), roundID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	var totalAmount float64
	var totalCount int64
	for _, b := range bets {
		totalAmount += b.TotalAmount
		totalCount += b.BetCount
	}

	response.Success(&c.Controller, map[string]interface{}{
		"round_id":     roundID,
		"bets":         bets,
		"total_amount": totalAmount,
		"total_count":  totalCount,
	}, traceID)
}

// ApproveWithdrawal 通过提现：POST /api/admin/withdrawals/:id/approve
func (c *AdminController) ApproveWithdrawal() {
	traceID := helper.GetTraceID(c.Ctx)

	txID, err := strconv.ParseInt(c.Ctx.Input.Param(":id"), 10, 64)
	if err != nil || txID <= 0 {
		response.BadRequest(&c.Controller, "invalid transaction id", traceID)
		return
	}

	if err := newWalletService().ApproveWithdrawal(c.Ctx.Request.Context(), txID, "admin", traceID); err != nil {
		if errors.Is(err, service.ErrTxNotFound) {
			response.NotFound(&c.Controller, "提现记录不存在", traceID)
			return
		}
		if errors.Is(err, service.ErrTxNotPending) {
			response.Conflict(&c.Controller, response.CodeInvalidState, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, nil, traceID)
}

// CancelWithdrawal 驳回提现并退款：POST /api/admin/withdrawals/:id/cancel
func (c *AdminController) CancelWithdrawal() {
	traceID := helper.GetTraceID(c.Ctx)

	txID, err := strconv.ParseInt(c.Ctx.Input.Param(":id"), 10, 64)
	if err != nil || txID <= 0 {
		response.BadRequest(&c.Controller, "invalid transaction id", traceID)
		return
	}

	if err := newWalletService().CancelWithdrawal(c.Ctx.Request.Context(), txID, "admin", traceID); err != nil {
		if errors.Is(err, service.ErrTxNotFound) {
			response.NotFound(&c.Controller, "提现记录不存在", traceID)
			return
		}
		if errors.Is(err, service.ErrTxNotPending) {
			response.Conflict(&c.Controller, response.CodeInvalidState, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, nil, traceID)
}

// ApproveDeposit 人工确认充值：POST /api/admin/deposits/:id/approve
// 收银台回跳丢失时的补偿入口，幂等
func (c *AdminController) ApproveDeposit() {
	traceID := helper.GetTraceID(c.Ctx)

	txID, err := strconv.ParseInt(c.Ctx.Input.Param(":id"), 10, 64)
	if err != nil || txID <= 0 {
		response.BadRequest(&c.Controller, "invalid transaction id", traceID)
		return
	}

	if err := newWalletService().ApproveDeposit(c.Ctx.Request.Context(), txID, "admin", traceID); err != nil {
		if errors.Is(err, service.ErrTxNotFound) {
			response.NotFound(&c.Controller, "充值记录不存在", traceID)
			return
		}
		if errors.Is(err, service.ErrTxNotPending) {
			response.Conflict(&c.Controller, response.CodeInvalidState, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, nil, traceID)
}

// CancelBet 撤单退款：POST /api/admin/bets/:id/cancel
// 仅限所属期次仍在投注中的注单
func (c *AdminController) CancelBet() {
	traceID := helper.GetTraceID(c.Ctx)

	txID, err := strconv.ParseInt(c.Ctx.Input.Param(":id"), 10, 64)
	if err != nil || txID <= 0 {
		response.BadRequest(&c.Controller, "invalid transaction id", traceID)
		return
	}

	if err := newWalletService().CancelBet(c.Ctx.Request.Context(), txID, "admin", traceID); err != nil {
		if errors.Is(err, service.ErrTxNotFound) {
			response.NotFound(&c.Controller, "注单不存在", traceID)
			return
		}
		if errors.Is(err, service.ErrBetNotCancellable) {
			response.Conflict(&c.Controller, response.CodeInvalidState, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, nil, traceID)
}

// ResolveRound 手动触发开奖：POST /api/admin/resolve
// 正常由调度器自动触发，此接口用于排障与补偿
func (c *AdminController) ResolveRound() {
	traceID := helper.GetTraceID(c.Ctx)

	var req struct {
		RoundID string `json:"round_id"`
	}
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil || req.RoundID == "" {
		response.BadRequest(&c.Controller, "round_id is required", traceID)
		return
	}

	err := newResolveService().ResolveRound(c.Ctx.Request.Context(), service.ResolveInput{
		RoundID:  req.RoundID,
		Operator: "admin",
		TraceID:  traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrRoundNotFound) {
			response.NotFound(&c.Controller, "期次不存在", traceID)
			return
		}
		if errors.Is(err, service.ErrInvalidStateResolve) {
			response.Conflict(&c.Controller, response.CodeInvalidState, traceID)
			return
		}
		// 随机源超时：期次已回退 active，可稍后重试
		if errors.Is(err, oracle.ErrLedgerTimeout) {
			response.Error(&c.Controller, 503, response.CodeOracleUnavailable, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, nil, traceID)
}
