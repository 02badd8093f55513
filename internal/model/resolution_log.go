package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// ResolutionLog 开奖结算日志表（防止重复结算）
// round_id 上有唯一索引：同一期次的第二次插入将触发唯一键冲突
type ResolutionLog struct {
	ID            int64   `db:"id"`             // 自增ID
	RoundID       string  `db:"round_id"`       // 期次ID
	WinningNumber int     `db:"winning_number"` // 开奖号码 1..52
	LedgerSeq     int64   `db:"ledger_seq"`     // Stellar 账本序号
	LedgerHash    string  `db:"ledger_hash"`    // Stellar 账本哈希
	TotalWinners  int     `db:"total_winners"`  // 中奖注单数
	TotalPayout   float64 `db:"total_payout"`   // 总派彩金额
	Operator      string  `db:"operator"`       // 操作人（scheduler/admin）
	TraceID       string  `db:"trace_id"`       // 链路追踪ID
	CreatedAt     int64   `db:"created_at"`     // 创建时间（13位毫秒时间戳）
}

// CreateResolutionLog 创建结算日志（利用唯一索引防止重复结算）
// 如果返回唯一键冲突错误，说明该期次已经结算过
func CreateResolutionLog(ctx context.Context, exec sqlx.ExtContext, log *ResolutionLog) error {
	now := time.Now().UnixMilli()
	log.CreatedAt = now

	sqlStr := `INSERT INTO resolution_log (round_id, winning_number, ledger_seq, ledger_hash, total_winners, total_payout, operator, trace_id, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := exec.ExecContext(ctx, sqlStr,
		log.RoundID, log.WinningNumber, log.LedgerSeq, log.LedgerHash, log.TotalWinners, log.TotalPayout, log.Operator, log.TraceID, log.CreatedAt)

	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	log.ID = id

	return nil
}

// UpdateResolutionTotals 结算完成后回填赢家数与总派彩（同一事务内）
func UpdateResolutionTotals(ctx context.Context, exec sqlx.ExtContext, roundID string, totalWinners int, totalPayout float64) error {
	sqlStr := "UPDATE resolution_log SET total_winners = ?, total_payout = ? WHERE round_id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, totalWinners, totalPayout, roundID)
	return err
}

// GetResolutionLog 查询结算日志
func GetResolutionLog(ctx context.Context, db *sqlx.DB, roundID string) (*ResolutionLog, error) {
	sqlStr := `SELECT id, round_id, winning_number, ledger_seq, ledger_hash, total_winners, total_payout, operator, trace_id, created_at
	           FROM resolution_log WHERE round_id = ? LIMIT 1`

	var log ResolutionLog
	if err := db.GetContext(ctx, &log, sqlStr, roundID); err != nil {
		return nil, err
	}

	return &log, nil
}
