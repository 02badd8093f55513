package model

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// RoundBet 对应 round_bets 表（期次内每个号码的投注总额）
// 主键 (round_id, pick_number)，号码空间封闭为 1..52
type RoundBet struct {
	RoundID     string  `db:"round_id"`
	PickNumber  int     `db:"pick_number"`
	TotalAmount float64 `db:"total_amount"`
	BetCount    int64   `db:"bet_count"`
}

// IncrementRoundBet 累加某号码的投注总额
// 使用 INSERT ... ON DUPLICATE KEY UPDATE 原子累加，避免读-改-写丢失更新
func IncrementRoundBet(ctx context.Context, exec sqlx.ExtContext, roundID string, pickNumber int, amount float64) error {
	sqlStr := `INSERT INTO round_bets (round_id, pick_number, total_amount, bet_count)
		VALUES (?, ?, ?, 1)
		ON DUPLICATE KEY UPDATE total_amount = total_amount + VALUES(total_amount), bet_count = bet_count + 1`
	_, err := exec.ExecContext(ctx, sqlStr, roundID, pickNumber, amount)
	return err
}

// DecrementRoundBet 回退某号码的投注总额（管理员撤单），下限为 0
func DecrementRoundBet(ctx context.Context, exec sqlx.ExtContext, roundID string, pickNumber int, amount float64) error {
	sqlStr := `UPDATE round_bets
		SET total_amount = GREATEST(total_amount - ?, 0), bet_count = GREATEST(bet_count - 1, 0)
		WHERE round_id = ? AND pick_number = ?`
	_, err := exec.ExecContext(ctx, sqlStr, amount, roundID, pickNumber)
	return err
}

// ListRoundBets 查询期次内全部号码的投注汇总
func ListRoundBets(ctx context.Context, exec sqlx.ExtContext, roundID string) ([]RoundBet, error) {
	sqlStr := `SELECT round_id, pick_number, total_amount, bet_count
		FROM round_bets WHERE round_id = ? ORDER BY pick_number ASC`
	var rs []RoundBet
	if err := sqlx.SelectContext(ctx, exec, &rs, sqlStr, roundID); err != nil {
		return nil, err
	}
	return rs, nil
}

// GetRoundBetTotal 查询期次内某号码的投注总额（无记录返回 0）
func GetRoundBetTotal(ctx context.Context, db *sqlx.DB, roundID string, pickNumber int) (float64, error) {
	sqlStr := `SELECT COALESCE(SUM(total_amount), 0) FROM round_bets WHERE round_id = ? AND pick_number = ?`
	var total float64
	if err := db.GetContext(ctx, &total, sqlStr, roundID, pickNumber); err != nil {
		return 0, err
	}
	return total, nil
}
