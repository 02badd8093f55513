package model

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// NumberStat 对应 number_stats 表（每个号码的 ESI 与当前赔率）
// number 为主键，取值 1..52；esi 与 payout_multiplier 的边界由写入方收敛保证
type NumberStat struct {
	Number           int           `db:"number"`
	Esi              float64       `db:"esi"`
	PayoutMultiplier float64       `db:"payout_multiplier"`
	LastWinDate      sql.NullInt64 `db:"last_win_date"` // 最近中奖时间（毫秒，可空）
	UpdatedAt        int64         `db:"updated_at"`
}

// NumberCount 号码空间大小
const NumberCount = 52

// EnsureNumberStats 初始化 52 行号码统计（已存在则不变更）
func EnsureNumberStats(ctx context.Context, exec sqlx.ExtContext, defaultEsi, defaultMult float64) error {
	now := time.Now().UnixMilli()
	sqlStr := `INSERT INTO number_stats (number, esi, payout_multiplier, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE number = number`
	for n := 1; n <= NumberCount; n++ {
		if _, err := exec.ExecContext(ctx, sqlStr, n, defaultEsi, defaultMult, now); err != nil {
			return err
		}
	}
	return nil
}

// ListNumberStats 查询全部号码统计（号码升序）
func ListNumberStats(ctx context.Context, exec sqlx.ExtContext) ([]NumberStat, error) {
	sqlStr := `SELECT number, esi, payout_multiplier, last_win_date, updated_at
		FROM number_stats ORDER BY number ASC`
	var rs []NumberStat
	if err := sqlx.SelectContext(ctx, exec, &rs, sqlStr); err != nil {
		return nil, err
	}
	return rs, nil
}

// ListNumberStatsForUpdate 加锁查询全部号码统计（结算事务内调用）
func ListNumberStatsForUpdate(ctx context.Context, exec sqlx.ExtContext) ([]NumberStat, error) {
	sqlStr := `SELECT number, esi, payout_multiplier, last_win_date, updated_at
		FROM number_stats ORDER BY number ASC FOR UPDATE`
	var rs []NumberStat
	if err := sqlx.SelectContext(ctx, exec, &rs, sqlStr); err != nil {
		return nil, err
	}
	return rs, nil
}

// UpdateNumberStat 回写单个号码的 ESI 与赔率（结算事务内调用）
func UpdateNumberStat(ctx context.Context, exec sqlx.ExtContext, number int, esi, mult float64, wonAtMs int64) error {
	now := time.Now().UnixMilli()

	if wonAtMs > 0 {
		sqlStr := "UPDATE number_stats SET esi = ?, payout_multiplier = ?, last_win_date = ?, updated_at = ? WHERE number = ?"
		_, err := exec.ExecContext(ctx, sqlStr, esi, mult, wonAtMs, now, number)
		return err
	}

	sqlStr := "UPDATE number_stats SET esi = ?, payout_multiplier = ?, updated_at = ? WHERE number = ?"
	_, err := exec.ExecContext(ctx, sqlStr, esi, mult, now, number)
	return err
}

// ApplyBetPressure 投注需求压降：赔率按金额线性下调并钳制在下限之上
// 使用 GREATEST 在 SQL 内原子完成，避免并发投注下的读-改-写竞争
func ApplyBetPressure(ctx context.Context, exec sqlx.ExtContext, number int, drop, floor float64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE number_stats SET payout_multiplier = GREATEST(?, payout_multiplier - ?), updated_at = ? WHERE number = ?"
	_, err := exec.ExecContext(ctx, sqlStr, floor, drop, now, number)
	return err
}

// GetNumberStatForUpdate 加锁查询单个号码（投注事务内锁定赔率）
func GetNumberStatForUpdate(ctx context.Context, exec sqlx.ExtContext, number int) (*NumberStat, error) {
	sqlStr := `SELECT number, esi, payout_multiplier, last_win_date, updated_at
		FROM number_stats WHERE number = ? FOR UPDATE`
	var s NumberStat
	if err := sqlx.GetContext(ctx, exec, &s, sqlStr, number); err != nil {
		return nil, err
	}
	return &s, nil
}
