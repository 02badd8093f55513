package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// GameRound 对应 game_rounds 表
// 说明：round_id 为毫秒时间戳字符串；start_time/end_time 为毫秒时间戳
// status: 1=active 投注中 2=resolving 结算中 3=completed 已完成
// is_settled: 0=未结算 1=已结算（防止重复结算）
// 开奖字段（winning_*）仅在 completed 后非零
type GameRound struct {
	ID                int64  `db:"id"`
	RoundID           string `db:"round_id"`
	StartTime         int64  `db:"start_time"`
	EndTime           int64  `db:"end_time"`
	Status            int8   `db:"status"`
	WinningNumber     int    `db:"winning_number"`
	WinningLedgerSeq  int64  `db:"winning_ledger_seq"`
	WinningLedgerHash string `db:"winning_ledger_hash"`
	IsSettled         int8   `db:"is_settled"` // 是否已结算: 0=未结算 1=已结算
	TraceID           string `db:"trace_id"`
	CreatedAt         int64  `db:"created_at"`
	UpdatedAt         int64  `db:"updated_at"`
}

// 期次状态枚举
const (
	RoundStatusActive    int8 = 1
	RoundStatusResolving int8 = 2
	RoundStatusCompleted int8 = 3
)

const roundFields = `id, round_id, start_time, end_time, status, winning_number,
	winning_ledger_seq, winning_ledger_hash, is_settled, trace_id, created_at, updated_at`

// InsertRound 插入一个新期次（状态 active）
func InsertRound(ctx context.Context, exec sqlx.ExtContext, roundID string, startMs, endMs int64, traceID string) error {
	now := time.Now().UnixMilli()
	sqlStr := `INSERT INTO game_rounds (round_id, start_time, end_time, status, trace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := exec.ExecContext(ctx, sqlStr, roundID, startMs, endMs, RoundStatusActive, traceID, now, now)
	return err
}

// GetActiveRound 查询当前 active 期次（至多一条，按开始时间倒序兜底）
func GetActiveRound(ctx context.Context, exec sqlx.ExtContext) (*GameRound, error) {
	sqlStr := `SELECT ` + roundFields + ` FROM game_rounds WHERE status = ? ORDER BY start_time DESC LIMIT 1`
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, RoundStatusActive); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetActiveRoundForUpdate 加锁查询当前 active 期次，必须在事务中调用
func GetActiveRoundForUpdate(ctx context.Context, exec sqlx.ExtContext) (*GameRound, error) {
	sqlStr := `SELECT ` + roundFields + ` FROM game_rounds WHERE status = ? ORDER BY start_time DESC LIMIT 1 FOR UPDATE`
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, RoundStatusActive); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRound 获取期次信息（不加锁）
func GetRound(ctx context.Context, exec sqlx.ExtContext, roundID string) (*GameRound, error) {
	sqlStr := `SELECT ` + roundFields + ` FROM game_rounds WHERE round_id = ?`
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, roundID); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRoundForUpdate 获取期次信息并加锁（投注校验/结算入口）
func GetRoundForUpdate(ctx context.Context, exec sqlx.ExtContext, roundID string) (*GameRound, error) {
	sqlStr := `SELECT ` + roundFields + ` FROM game_rounds WHERE round_id = ? FOR UPDATE`
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, roundID); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetSettlementStatusForUpdate 在事务中按期次ID加锁并返回结算状态
// 返回值: (status, is_settled, error)
func GetSettlementStatusForUpdate(ctx context.Context, exec sqlx.ExtContext, roundID string) (int8, int8, error) {
	sqlStr := "SELECT status, is_settled FROM game_rounds WHERE round_id = ? FOR UPDATE"

	type result struct {
		Status    int8 `db:"status"`
		IsSettled int8 `db:"is_settled"`
	}

	var r result
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, roundID); err != nil {
		return 0, 0, err
	}
	return r.Status, r.IsSettled, nil
}

// UpdateRoundState 更新期次状态
func UpdateRoundState(ctx context.Context, exec sqlx.ExtContext, roundID string, newStatus int8) error {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE game_rounds SET status = ?, updated_at = ? WHERE round_id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, newStatus, now, roundID)
	return err
}

// CompleteRound 写入开奖结果并标记已结算（结算事务内调用）
func CompleteRound(ctx context.Context, exec sqlx.ExtContext, roundID string, winningNumber int, ledgerSeq int64, ledgerHash string) error {
	now := time.Now().UnixMilli()

	sqlStr := `UPDATE game_rounds SET status = ?, winning_number = ?, winning_ledger_seq = ?,
		winning_ledger_hash = ?, is_settled = 1, updated_at = ? WHERE round_id = ?`
	_, err := exec.ExecContext(ctx, sqlStr, RoundStatusCompleted, winningNumber, ledgerSeq, ledgerHash, now, roundID)
	return err
}

// ListCompletedRounds 查询最近完成的期次（结果页，含可验证的账本哈希）
func ListCompletedRounds(ctx context.Context, db *sqlx.DB, limit int) ([]GameRound, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	sqlStr := `SELECT ` + roundFields + ` FROM game_rounds WHERE status = ? ORDER BY end_time DESC LIMIT ?`
	var rs []GameRound
	if err := db.SelectContext(ctx, &rs, sqlStr, RoundStatusCompleted, limit); err != nil {
		return nil, err
	}
	return rs, nil
}

// ListExpiredUnsettledRounds 查询已过截止时间且尚未结算的期次（调度器扫描）
// 包含 resolving 状态：进程在等待账本期间崩溃重启后，卡在 resolving 的期次
// 由此重新进入开奖流程（markResolving 对 resolving 状态直接放行续作）
func ListExpiredUnsettledRounds(ctx context.Context, db *sqlx.DB, nowMs int64) ([]GameRound, error) {
	sqlStr := `SELECT ` + roundFields + ` FROM game_rounds
		WHERE status IN (?, ?) AND is_settled = 0 AND end_time <= ? ORDER BY end_time ASC LIMIT 10`
	var rs []GameRound
	if err := db.SelectContext(ctx, &rs, sqlStr, RoundStatusActive, RoundStatusResolving, nowMs); err != nil {
		return nil, err
	}
	return rs, nil
}

// ReopenResolvingRound 将 resolving 期次置回 active（随机源失败、开奖中止时调用）
// 仅当期次仍为 resolving 时生效；并发结算方已将其置为 completed 时不回退，
// 返回是否实际发生了状态回退
func ReopenResolvingRound(ctx context.Context, exec sqlx.ExtContext, roundID string) (bool, error) {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE game_rounds SET status = ?, updated_at = ? WHERE round_id = ? AND status = ?"
	res, err := exec.ExecContext(ctx, sqlStr, RoundStatusActive, now, roundID, RoundStatusResolving)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RoundSnapshot 提供 GET 接口所需的最小字段集合
type RoundSnapshot struct {
	RoundID           string `db:"round_id" json:"round_id"`
	StartTime         int64  `db:"start_time" json:"start_time"`
	EndTime           int64  `db:"end_time" json:"end_time"`
	Status            int8   `db:"status" json:"status"`
	WinningNumber     int    `db:"winning_number" json:"winning_number"`
	WinningLedgerSeq  int64  `db:"winning_ledger_seq" json:"winning_ledger_seq"`
	WinningLedgerHash string `db:"winning_ledger_hash" json:"winning_ledger_hash"`
}

// GetRoundSnapshot 按期次ID查询所需字段（无锁读取）
func GetRoundSnapshot(ctx context.Context, exec sqlx.ExtContext, roundID string) (*RoundSnapshot, error) {
	sqlStr := `SELECT round_id, start_time, end_time, status, winning_number, winning_ledger_seq, winning_ledger_hash
		FROM game_rounds WHERE round_id = ?`
	var rs RoundSnapshot
	if err := sqlx.GetContext(ctx, exec, &rs, sqlStr, roundID); err != nil {
		return nil, err
	}
	return &rs, nil
}
