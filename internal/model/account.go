package model

import (
	"context"
	"database/sql"
	"time"

	"github.com/LeonMotaung/f2gbetting/common/logger"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Account 对应 accounts 表
// 说明：所有时间为毫秒时间戳；金额使用 DECIMAL(18,2) 存储，Go 层以 float64 承载，
// 事务内的余额运算一律经 decimal 计算后回写
// status: 1=启用 2=禁用
type Account struct {
	UserID         int64   `db:"user_id"`          // 用户ID(主键)
	Email          string  `db:"email"`            // 邮箱（唯一）
	PasswordHash   string  `db:"password_hash"`    // bcrypt 哈希
	FirstName      string  `db:"first_name"`       // 名
	LastName       string  `db:"last_name"`        // 姓
	Phone          string  `db:"phone"`            // 手机号（可选）
	Balance        float64 `db:"balance"`          // 余额（非负）
	TotalBets      int64   `db:"total_bets"`       // 累计投注笔数
	TotalWins      int64   `db:"total_wins"`       // 累计中奖笔数
	TotalWonAmount float64 `db:"total_won_amount"` // 累计中奖金额
	IsAdmin        int8    `db:"is_admin"`         // 1=管理员
	IsVerified     int8    `db:"is_verified"`      // 1=已验证
	Status         int8    `db:"status"`           // 用户状态 1=启用 2=禁用
	CreatedAt      int64   `db:"created_at"`       // 创建时间
	UpdatedAt      int64   `db:"updated_at"`       // 更新时间
}

const accountFields = `user_id, email, password_hash, first_name, last_name, phone,
	balance, total_bets, total_wins, total_won_amount, is_admin, is_verified,
	status, created_at, updated_at`

// GetAccountByEmail 根据邮箱查询账户（登录用）
func GetAccountByEmail(ctx context.Context, db *sqlx.DB, email string) (*Account, error) {
	query := `SELECT ` + accountFields + ` FROM accounts WHERE email = ? LIMIT 1`

	var a Account
	err := db.GetContext(ctx, &a, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get account by email failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	return &a, nil
}

// GetAccountByID 根据ID查询账户
func GetAccountByID(ctx context.Context, db *sqlx.DB, userID int64) (*Account, error) {
	query := `SELECT ` + accountFields + ` FROM accounts WHERE user_id = ? LIMIT 1`

	var a Account
	err := db.GetContext(ctx, &a, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get account by id failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	return &a, nil
}

// GetAccountForUpdate 按 user_id 加锁查询（FOR UPDATE），必须在事务中调用
func GetAccountForUpdate(ctx context.Context, exec sqlx.ExtContext, userID int64) (*Account, error) {
	query := `SELECT ` + accountFields + ` FROM accounts WHERE user_id = ? FOR UPDATE`

	var a Account
	err := sqlx.GetContext(ctx, exec, &a, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get account for update failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	return &a, nil
}

// Insert 插入账户（注册）
func (a *Account) Insert(ctx context.Context, db *sqlx.DB) error {
	now := time.Now().UnixMilli()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == 0 {
		a.Status = 1
	}

	query := `INSERT INTO accounts (email, password_hash, first_name, last_name, phone,
		balance, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := db.ExecContext(ctx, query,
		a.Email, a.PasswordHash, a.FirstName, a.LastName, a.Phone, a.Balance, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if !IsDuplicateKeyError(err) {
			logger.Error("insert account failed", zap.String("email", a.Email), zap.Error(err))
		}
		return err
	}

	id, _ := result.LastInsertId()
	a.UserID = id

	logger.Info("account created", zap.Int64("user_id", a.UserID), zap.String("email", a.Email))

	return nil
}

// UpdateAccountBalance 更新账户余额（金额由调用方在事务内经 decimal 计算）
func UpdateAccountBalance(ctx context.Context, exec sqlx.ExtContext, userID int64, newBalance float64) error {
	now := time.Now().UnixMilli()
	query := `UPDATE accounts SET balance = ?, updated_at = ? WHERE user_id = ?`

	_, err := exec.ExecContext(ctx, query, newBalance, now, userID)
	if err != nil {
		logger.Error("update account balance failed",
			zap.Int64("user_id", userID),
			zap.Float64("new_balance", newBalance),
			zap.Error(err))
		return err
	}

	return nil
}

// ApplyBetToAccount 投注入账：余额回写并累计投注笔数（事务内调用）
func ApplyBetToAccount(ctx context.Context, exec sqlx.ExtContext, userID int64, newBalance float64) error {
	now := time.Now().UnixMilli()
	query := `UPDATE accounts SET balance = ?, total_bets = total_bets + 1, updated_at = ? WHERE user_id = ?`

	_, err := exec.ExecContext(ctx, query, newBalance, now, userID)
	return err
}

// ReverseBetOnAccount 撤单退款：余额回写并回退投注笔数（事务内调用）
func ReverseBetOnAccount(ctx context.Context, exec sqlx.ExtContext, userID int64, newBalance float64) error {
	now := time.Now().UnixMilli()
	query := `UPDATE accounts SET balance = ?, total_bets = GREATEST(total_bets - 1, 0), updated_at = ? WHERE user_id = ?`

	_, err := exec.ExecContext(ctx, query, newBalance, now, userID)
	return err
}

// ApplyWinToAccount 派彩入账：余额回写并累计中奖笔数/金额（事务内调用）
func ApplyWinToAccount(ctx context.Context, exec sqlx.ExtContext, userID int64, newBalance float64, wins int, wonAmount float64) error {
	now := time.Now().UnixMilli()
	query := `UPDATE accounts SET balance = ?, total_wins = total_wins + ?, total_won_amount = total_won_amount + ?, updated_at = ? WHERE user_id = ?`

	_, err := exec.ExecContext(ctx, query, newBalance, wins, wonAmount, now, userID)
	return err
}

// GetAccountBalance 获取账户余额（非锁查询）
func GetAccountBalance(ctx context.Context, db *sqlx.DB, userID int64) (float64, error) {
	query := `SELECT balance FROM accounts WHERE user_id = ? LIMIT 1`

	var balance float64
	err := db.GetContext(ctx, &balance, query, userID)
	if err != nil {
		logger.Error("get account balance failed", zap.Int64("user_id", userID), zap.Error(err))
		return 0, err
	}

	return balance, nil
}
