package api

import (
	"database/sql"
	"errors"

	helper "github.com/LeonMotaung/f2gbetting/internal/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/common/response"
	infmysql "github.com/LeonMotaung/f2gbetting/internal/infra/mysql"
	"github.com/LeonMotaung/f2gbetting/internal/model"
	"github.com/LeonMotaung/f2gbetting/internal/oracle"

	beego "github.com/beego/beego/v2/server/web"
)

// VerifyController 公开验证接口：GET /api/verify/:round_id
// 从数据库取出该期的账本哈希，重新执行号码推导并与落库结果比对；
// 客户端也可拿 winning_ledger_seq 去 Horizon 自行核对哈希本身。
type VerifyController struct{ beego.Controller }

func (c *VerifyController) Verify() {
	traceID := helper.GetTraceID(c.Ctx)

	roundID := c.Ctx.Input.Param(":round_id")
	if roundID == "" {
		response.BadRequest(&c.Controller, "round_id is required", traceID)
		return
	}

	round, err := model.GetRound(c.Ctx.Request.Context(), infmysql.SQLX(), roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.NotFound(&c.Controller, "期次不存在", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	if round.Status != model.RoundStatusCompleted || round.WinningLedgerHash == "" {
		response.Conflict(&c.Controller, response.CodeInvalidState, traceID)
		return
	}

	recomputed, err := oracle.WinningNumber(round.WinningLedgerHash)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"round_id":            round.RoundID,
		"winning_ledger_seq":  round.WinningLedgerSeq,
		"winning_ledger_hash": round.WinningLedgerHash,
		"winning_number":      round.WinningNumber,
		"recomputed_number":   recomputed,
		"verified":            recomputed == round.WinningNumber,
	}, traceID)
}
