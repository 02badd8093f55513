package api

import (
	"context"
	"encoding/json"
	"time"

	chelper "github.com/LeonMotaung/f2gbetting/common/helper"
	helper "github.com/LeonMotaung/f2gbetting/internal/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/common/response"
	infrds "github.com/LeonMotaung/f2gbetting/internal/infra/redis"
	"github.com/LeonMotaung/f2gbetting/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newRoundService = service.NewRoundService

// RoundController 期次查询接口
// GET /api/round/current  当前 active 期次（含截止倒计时）
// GET /api/round/:round_id  指定期次信息与开奖结果
// round_info 走 Redis 短 TTL 缓存 + DB 回源；draw_result 只在结算后存在

type RoundController struct {
	beego.Controller
}

// GetCurrent 查询当前期次（不存在时创建，保证投注页始终有期可投）
func (c *RoundController) GetCurrent() {
	traceID := helper.GetTraceID(c.Ctx)

	round, err := newRoundService().GetOrCreateActiveRound(c.Ctx.Request.Context(), traceID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	remainMs := round.EndTime - time.Now().UnixMilli()
	if remainMs < 0 {
		remainMs = 0
	}

	response.Success(&c.Controller, map[string]interface{}{
		"round_id":   round.RoundID,
		"start_time": round.StartTime,
		"end_time":   round.EndTime,
		"status":     round.Status,
		"remain_ms":  remainMs,
	}, traceID)
}

// GetRound 查询指定期次：round_info + draw_result（如已开奖）
func (c *RoundController) GetRound() {
	traceID := helper.GetTraceID(c.Ctx)

	roundID := c.Ctx.Input.Param(":round_id")
	if roundID == "" {
		response.BadRequest(&c.Controller, "round_id is required", traceID)
		return
	}

	ctx := c.Ctx.Request.Context()

	snap, err := newRoundService().GetRoundSnapshot(ctx, roundID)
	if err != nil {
		if chelper.IsNoRows(err) {
			response.NotFound(&c.Controller, "期次不存在", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	drawResult := readDrawResult(ctx, roundID)
	// 缓存未命中但期次已开奖：由落库字段组装
	if drawResult == nil && snap.WinningLedgerHash != "" {
		drawResult = map[string]any{
			"round_id":            snap.RoundID,
			"winning_number":      snap.WinningNumber,
			"winning_ledger_seq":  snap.WinningLedgerSeq,
			"winning_ledger_hash": snap.WinningLedgerHash,
		}
	}

	response.Success(&c.Controller, map[string]interface{}{
		"round_info":  snap,
		"draw_result": drawResult,
	}, traceID)
}

// readDrawResult 读取 Redis 中的开奖结果缓存（miss/降级返回 nil）
func readDrawResult(ctx context.Context, roundID string) map[string]any {
	r := infrds.Client()
	if r == nil {
		return nil
	}
	bs, err := r.Get(ctx, infrds.RoundResultKey(roundID)).Bytes()
	if err != nil || len(bs) == 0 {
		return nil
	}
	var out map[string]any
	if json.Unmarshal(bs, &out) != nil {
		return nil
	}
	return out
}
