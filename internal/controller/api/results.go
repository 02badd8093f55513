package api

import (
	"strconv"

	helper "github.com/LeonMotaung/f2gbetting/internal/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/common/response"
	infmysql "github.com/LeonMotaung/f2gbetting/internal/infra/mysql"
	"github.com/LeonMotaung/f2gbetting/internal/model"

	beego "github.com/beego/beego/v2/server/web"
)

// ResultsController 历史开奖结果：GET /api/results?limit=
// 返回最近完成的期次，包含账本序号与哈希，客户端可据此独立验证开奖号码
type ResultsController struct{ beego.Controller }

func (c *ResultsController) ListResults() {
	traceID := helper.GetTraceID(c.Ctx)

	limit, _ := strconv.Atoi(c.GetString("limit", "10"))

	rounds, err := model.ListCompletedRounds(c.Ctx.Request.Context(), infmysql.SQLX(), limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	results := make([]map[string]interface{}, 0, len(rounds))
	for _, r := range rounds {
		results = append(results, map[string]interface{}{
			"round_id":            r.RoundID,
			"start_time":          r.StartTime,
			"end_time":            r.EndTime,
			"winning_number":      r.WinningNumber,
			"winning_ledger_seq":  r.WinningLedgerSeq,
			"winning_ledger_hash": r.WinningLedgerHash,
		})
	}

	response.Success(&c.Controller, map[string]interface{}{
		"results": results,
		"count":   len(results),
	}, traceID)
}
