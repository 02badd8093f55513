package api

import (
	helper "github.com/LeonMotaung/f2gbetting/internal/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/common/response"
	"github.com/LeonMotaung/f2gbetting/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newOddsService = service.NewOddsService

// OddsController 赔率接口：GET /api/odds
// 返回当前期次与 52 个号码的当前赔率（Redis 快照 + DB 回源），投注/结算后快照会被主动失效
type OddsController struct{ beego.Controller }

func (c *OddsController) GetOdds() {
	traceID := helper.GetTraceID(c.Ctx)
	ctx := c.Ctx.Request.Context()

	out, err := newOddsService().GetOdds(ctx)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	round, err := newRoundService().GetOrCreateActiveRound(ctx, traceID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"round_id":   round.RoundID,
		"start_time": round.StartTime,
		"end_time":   round.EndTime,
		"odds":       out,
		"count":      len(out),
	}, traceID)
}
