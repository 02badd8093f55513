package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Transaction 对应 transactions 表（追加式账本 + 注单）
// 说明：金额为非负；方向由 before_amount/after_amount 与 tx_type 推导
// tx_type: 1=deposit 充值 2=withdrawal 提现 3=bet 下注 4=win 派彩
// status: 1=pending 待处理 2=completed 已完成 3=failed 失败 4=cancelled 已取消
// 下注/派彩行额外携带 round_id 与 pick_number，结算按索引列检索，不解析描述文本
type Transaction struct {
	ID           int64   `db:"id"`            // 自增ID
	UserID       int64   `db:"user_id"`       // 用户ID
	TxType       int8    `db:"tx_type"`       // 交易类型数值码
	TxTypeStr    string  `db:"tx_type_str"`   // 交易类型冗余字符串
	Amount       float64 `db:"amount"`        // 金额（非负）
	BeforeAmount float64 `db:"before_amount"` // 变动前余额
	AfterAmount  float64 `db:"after_amount"`  // 变动后余额
	Status       int8    `db:"status"`        // 状态
	Description  string  `db:"description"`   // 描述
	RoundID      string  `db:"round_id"`      // 期次ID（下注/派彩）
	PickNumber   int     `db:"pick_number"`   // 投注号码 1..52（下注/派彩）
	PayoutMult   float64 `db:"payout_mult"`   // 下单时锁定的赔率
	BillNo       string  `db:"bill_no"`       // 注单号/业务单号
	PaymentRef   string  `db:"payment_ref"`   // 支付网关外部单号
	WithdrawInfo string  `db:"withdraw_info"` // 提现收款信息(JSON)
	TraceID      string  `db:"trace_id"`      // 链路追踪ID
	CreatedAt    int64   `db:"created_at"`    // 创建时间
	UpdatedAt    int64   `db:"updated_at"`    // 更新时间
}

// 交易类型枚举
const (
	TxTypeDeposit    int8 = 1
	TxTypeWithdrawal int8 = 2
	TxTypeBet        int8 = 3
	TxTypeWin        int8 = 4
)

// 交易状态枚举
const (
	TxStatusPending   int8 = 1
	TxStatusCompleted int8 = 2
	TxStatusFailed    int8 = 3
	TxStatusCancelled int8 = 4
)

// 交易类型映射（数值码与字符串双写）
func toTxTypeCode(s string) int8 {
	switch s {
	case "deposit":
		return TxTypeDeposit
	case "withdrawal":
		return TxTypeWithdrawal
	case "bet":
		return TxTypeBet
	case "win":
		return TxTypeWin
	default:
		return 0
	}
}

func FromTxTypeCode(c int8) string {
	switch c {
	case TxTypeDeposit:
		return "deposit"
	case TxTypeWithdrawal:
		return "withdrawal"
	case TxTypeBet:
		return "bet"
	case TxTypeWin:
		return "win"
	default:
		return ""
	}
}

// Insert 新增一条交易记录（tx_type 数值码与字符串双写）
func (t *Transaction) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	t.CreatedAt = now
	t.UpdatedAt = now

	code := t.TxType
	str := t.TxTypeStr
	if code == 0 && str != "" {
		code = toTxTypeCode(str)
	}
	if str == "" && code != 0 {
		str = FromTxTypeCode(code)
	}
	t.TxType = code
	t.TxTypeStr = str

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := `INSERT INTO transactions (user_id, tx_type, tx_type_str, amount, before_amount, after_amount,
		status, description, round_id, pick_number, payout_mult, bill_no, payment_ref, withdraw_info,
		trace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []interface{}{t.UserID, code, str, t.Amount, t.BeforeAmount, t.AfterAmount,
		t.Status, t.Description, t.RoundID, t.PickNumber, t.PayoutMult, t.BillNo, t.PaymentRef, t.WithdrawInfo,
		t.TraceID, now, now}

	result, err := exec.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	id, _ := result.LastInsertId()
	t.ID = id
	return nil
}

// ListWinningBetsForUpdate 按期次与中奖号码查询待派彩注单（FOR UPDATE），需在事务中调用
// 赢家判定依赖 round_id + pick_number 索引列，而非描述文本
func ListWinningBetsForUpdate(ctx context.Context, exec sqlx.ExtContext, roundID string, pickNumber int) ([]Transaction, error) {
	sqlStr := `SELECT id, user_id, amount, payout_mult, bill_no, trace_id
		FROM transactions
		WHERE round_id = ? AND pick_number = ? AND tx_type = ? AND status = ?
		FOR UPDATE`

	var rs []Transaction
	if err := sqlx.SelectContext(ctx, exec, &rs, sqlStr, roundID, pickNumber, TxTypeBet, TxStatusCompleted); err != nil {
		return nil, err
	}
	return rs, nil
}

// GetTransactionForUpdate 按ID加锁查询交易（管理操作/支付回跳用）
func GetTransactionForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*Transaction, error) {
	sqlStr := `SELECT id, user_id, tx_type, tx_type_str, amount, before_amount, after_amount,
		status, description, round_id, pick_number, payout_mult, bill_no, payment_ref, withdraw_info,
		trace_id, created_at, updated_at
		FROM transactions WHERE id = ? FOR UPDATE`

	var t Transaction
	if err := sqlx.GetContext(ctx, exec, &t, sqlStr, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTransactionByPaymentRef 按支付网关单号查询（支付成功回跳）
func GetTransactionByPaymentRef(ctx context.Context, db *sqlx.DB, paymentRef string) (*Transaction, error) {
	sqlStr := `SELECT id, user_id, tx_type, tx_type_str, amount, before_amount, after_amount,
		status, description, round_id, pick_number, payout_mult, bill_no, payment_ref, withdraw_info,
		trace_id, created_at, updated_at
		FROM transactions WHERE payment_ref = ? LIMIT 1`

	var t Transaction
	if err := db.GetContext(ctx, &t, sqlStr, paymentRef); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTransactionStatus 更新交易状态（pending -> completed/failed/cancelled）
func UpdateTransactionStatus(ctx context.Context, exec sqlx.ExtContext, id int64, status int8) error {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE transactions SET status = ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, status, now, id)
	return err
}

// BetRecord 投注记录（用于查询接口）
type BetRecord struct {
	ID         int64   `db:"id" json:"id"`                   // 交易ID
	RoundID    string  `db:"round_id" json:"round_id"`       // 期次ID
	PickNumber int     `db:"pick_number" json:"pick_number"` // 投注号码
	Amount     float64 `db:"amount" json:"amount"`           // 投注金额
	PayoutMult float64 `db:"payout_mult" json:"payout_mult"` // 下单锁定赔率
	Status     int8    `db:"status" json:"status"`           // 状态
	BillNo     string  `db:"bill_no" json:"bill_no"`         // 注单号
	CreatedAt  int64   `db:"created_at" json:"created_at"`   // 创建时间（毫秒时间戳）
}

// ListUserBets 查询用户的投注记录
// roundID 可选，为空则查询所有期次
func ListUserBets(ctx context.Context, db *sqlx.DB, userID int64, roundID string, limit int) ([]BetRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100 // 最多返回 100 条
	}

	var sqlStr string
	var args []interface{}

	if roundID != "" {
		sqlStr = `SELECT id, round_id, pick_number, amount, payout_mult, status, bill_no, created_at
			FROM transactions
			WHERE user_id = ? AND tx_type = ? AND round_id = ?
			ORDER BY created_at DESC
			LIMIT ?`
		args = []interface{}{userID, TxTypeBet, roundID, limit}
	} else {
		sqlStr = `SELECT id, round_id, pick_number, amount, payout_mult, status, bill_no, created_at
			FROM transactions
			WHERE user_id = ? AND tx_type = ?
			ORDER BY created_at DESC
			LIMIT ?`
		args = []interface{}{userID, TxTypeBet, limit}
	}

	var records []BetRecord
	if err := db.SelectContext(ctx, &records, sqlStr, args...); err != nil {
		return nil, err
	}

	return records, nil
}

// TxRecord 账变记录（用于流水查询接口）
type TxRecord struct {
	ID           int64   `db:"id" json:"id"`
	TxType       int8    `db:"tx_type" json:"tx_type"`
	TxTypeStr    string  `db:"tx_type_str" json:"tx_type_str"`
	Amount       float64 `db:"amount" json:"amount"`
	BeforeAmount float64 `db:"before_amount" json:"before_amount"`
	AfterAmount  float64 `db:"after_amount" json:"after_amount"`
	Status       int8    `db:"status" json:"status"`
	Description  string  `db:"description" json:"description"`
	RoundID      string  `db:"round_id" json:"round_id"`
	CreatedAt    int64   `db:"created_at" json:"created_at"`
}

// ListUserTransactions 查询用户账变流水（时间倒序）
func ListUserTransactions(ctx context.Context, db *sqlx.DB, userID int64, startSec, endSec int64, limit int) ([]TxRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	sqlStr := `SELECT id, tx_type, tx_type_str, amount, before_amount, after_amount, status, description, round_id, created_at
		FROM transactions
		WHERE user_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at DESC
		LIMIT ?`

	var records []TxRecord
	if err := db.SelectContext(ctx, &records, sqlStr, userID, startSec*1000, endSec*1000, limit); err != nil {
		return nil, err
	}

	return records, nil
}
