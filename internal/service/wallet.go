package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	chelper "github.com/LeonMotaung/f2gbetting/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/config"
	infmysql "github.com/LeonMotaung/f2gbetting/internal/infra/mysql"
	infrds "github.com/LeonMotaung/f2gbetting/internal/infra/redis"
	"github.com/LeonMotaung/f2gbetting/internal/model"
	"github.com/LeonMotaung/f2gbetting/internal/payment"

	"github.com/google/uuid"
	decimal "github.com/shopspring/decimal"
)

// 钱包业务：充值（instant/yoco）与提现（人工审核）

type DepositInput struct {
	UserID         int64
	Amount         string
	Method         string // instant / yoco
	IdempotencyKey string
	TraceID        string
}

type DepositOutput struct {
	BillNo      string `json:"bill_no"`
	Status      int8   `json:"status"`                 // 1=pending 2=completed
	Balance     string `json:"balance,omitempty"`      // instant 充值后余额
	RedirectURL string `json:"redirect_url,omitempty"` // yoco 收银台跳转地址
}

type WithdrawInput struct {
	UserID         int64
	Amount         string
	IdempotencyKey string
	TraceID        string
}

type WithdrawOutput struct {
	BillNo  string `json:"bill_no"`
	Status  int8   `json:"status"` // 1=pending 待审核
	Balance string `json:"balance"`
}

type WalletService interface {
	// Deposit 充值：instant 直接入账（演示模式），yoco 创建收银台会话待回跳确认
	Deposit(ctx context.Context, in DepositInput) (*DepositOutput, error)
	// ConfirmDeposit 支付成功回跳：将 pending 充值入账（幂等）
	ConfirmDeposit(ctx context.Context, billNo, traceID string) error
	// Withdraw 提现申请：冻结扣款并进入人工审核
	Withdraw(ctx context.Context, in WithdrawInput) (*WithdrawOutput, error)
	// ApproveDeposit 管理员人工确认充值（pending -> completed，回跳丢失时的补偿入口）
	ApproveDeposit(ctx context.Context, txID int64, operator, traceID string) error
	// ApproveWithdrawal 管理员通过提现（pending -> completed）
	ApproveWithdrawal(ctx context.Context, txID int64, operator, traceID string) error
	// CancelWithdrawal 管理员驳回提现并退款（pending -> cancelled）
	CancelWithdrawal(ctx context.Context, txID int64, operator, traceID string) error
	// CancelBet 管理员撤单退款（仅限所属期次仍在投注中）
	CancelBet(ctx context.Context, txID int64, operator, traceID string) error
}

type walletService struct{}

func NewWalletService() WalletService { return &walletService{} }

var (
	ErrDepositDisabled   = errors.New("instant deposit only available in demo mode")
	ErrTxNotFound        = errors.New("transaction not found")
	ErrTxNotPending      = errors.New("transaction is not pending")
	ErrWithdrawTooSmall  = errors.New("withdrawal below minimum amount")
	ErrDepositOutOfRange = errors.New("deposit amount out of range")
	ErrBetNotCancellable = errors.New("bet is not cancellable")
)

// 充值/提现限额
var (
	minDeposit  = decimal.NewFromInt(1)
	maxDeposit  = decimal.NewFromInt(100000)
	minWithdraw = decimal.NewFromInt(10)
)

// Deposit 充值入口
func (s *walletService) Deposit(ctx context.Context, in DepositInput) (*DepositOutput, error) {
	amtDec, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil || amtDec.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("invalid deposit amount")
	}
	if amtDec.LessThan(minDeposit) || amtDec.GreaterThan(maxDeposit) {
		return nil, ErrDepositOutOfRange
	}

	switch strings.ToLower(in.Method) {
	case "yoco":
		return s.depositViaYoco(ctx, in, amtDec)
	default:
		return s.depositInstant(ctx, in, amtDec)
	}
}

// depositInstant 演示模式直接入账
func (s *walletService) depositInstant(ctx context.Context, in DepositInput, amtDec decimal.Decimal) (*DepositOutput, error) {
	cfg := config.Get()
	if cfg == nil || !cfg.Auth.DemoMode {
		return nil, ErrDepositDisabled
	}

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	account, err := model.GetAccountForUpdate(ctx, tx, in.UserID)
	if err != nil {
		return nil, err
	}

	billNo := generateBillNo(account.UserID)

	// 幂等：先占幂等键
	if err := (&model.IdempotencyKey{IdempotencyKey: in.IdempotencyKey, Purpose: "deposit", Ref: billNo}).Insert(ctx, tx); err != nil {
		if model.IsDuplicateKeyError(err) {
			_ = tx.Rollback()
			ref, e1 := model.SelectRefByIdemKey(ctx, infmysql.SQLX(), in.IdempotencyKey)
			balance, e2 := model.GetAccountBalance(ctx, infmysql.SQLX(), in.UserID)
			if e1 == nil && e2 == nil {
				return &DepositOutput{
					BillNo:  ref,
					Status:  model.TxStatusCompleted,
					Balance: chelper.TrimDecimal(decimal.NewFromFloat(balance)),
				}, nil
			}
		}
		return nil, err
	}

	beforeDec := decimal.NewFromFloat(account.Balance)
	afterDec := beforeDec.Add(amtDec).Round(2)

	if err := model.UpdateAccountBalance(ctx, tx, account.UserID, afterDec.InexactFloat64()); err != nil {
		return nil, err
	}

	depTx := &model.Transaction{
		UserID:       account.UserID,
		TxType:       model.TxTypeDeposit,
		Amount:       amtDec.Round(2).InexactFloat64(),
		BeforeAmount: beforeDec.Round(2).InexactFloat64(),
		AfterAmount:  afterDec.InexactFloat64(),
		Status:       model.TxStatusCompleted,
		Description:  "instant deposit (demo mode)",
		BillNo:       billNo,
		TraceID:      in.TraceID,
	}
	if err := depTx.Insert(ctx, tx); err != nil {
		return nil, err
	}

	if err := model.CreateOutbox(ctx, tx, "deposit_completed", billNo, map[string]any{
		"event":   "deposit_completed",
		"bill_no": billNo,
		"user_id": account.UserID,
		"amount":  amtDec.Round(2).InexactFloat64(),
		"method":  "instant",
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	fmt.Printf("[Wallet] 充值完成: bill_no=%s, user_id=%d, amount=%s, trace_id=%s\n",
		billNo, in.UserID, amtDec.String(), in.TraceID)

	return &DepositOutput{
		BillNo:  billNo,
		Status:  model.TxStatusCompleted,
		Balance: chelper.TrimDecimal(afterDec),
	}, nil
}

// depositViaYoco 创建 pending 充值与收银台会话，支付回跳后确认入账
func (s *walletService) depositViaYoco(ctx context.Context, in DepositInput, amtDec decimal.Decimal) (*DepositOutput, error) {
	db := infmysql.SQLX()

	account, err := model.GetAccountByID(ctx, db, in.UserID)
	if err != nil {
		return nil, err
	}

	billNo := generateBillNo(account.UserID)

	// 先创建收银台会话，失败则不落库
	checkout, err := payment.CreateCheckout(ctx, amtDec.Round(2).InexactFloat64(), billNo, in.TraceID)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := (&model.IdempotencyKey{IdempotencyKey: in.IdempotencyKey, Purpose: "deposit", Ref: billNo}).Insert(ctx, tx); err != nil {
		if model.IsDuplicateKeyError(err) {
			return nil, errors.New("duplicate deposit request")
		}
		return nil, err
	}

	depTx := &model.Transaction{
		UserID:      account.UserID,
		TxType:      model.TxTypeDeposit,
		Amount:      amtDec.Round(2).InexactFloat64(),
		Status:      model.TxStatusPending,
		Description: "yoco checkout deposit",
		BillNo:      billNo,
		PaymentRef:  checkout.ID,
		TraceID:     in.TraceID,
	}
	if err := depTx.Insert(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	fmt.Printf("[Wallet] 创建收银台充值: bill_no=%s, checkout_id=%s, user_id=%d, trace_id=%s\n",
		billNo, checkout.ID, in.UserID, in.TraceID)

	return &DepositOutput{
		BillNo:      billNo,
		Status:      model.TxStatusPending,
		RedirectURL: checkout.RedirectURL,
	}, nil
}

// ConfirmDeposit 支付成功回跳：pending -> completed 并入账（幂等）
func (s *walletService) ConfirmDeposit(ctx context.Context, billNo, traceID string) error {
	db := infmysql.SQLX()

	// 按注单号定位 pending 充值
	var txID int64
	if err := db.GetContext(ctx, &txID,
		"SELECT id FROM transactions WHERE bill_no = ? AND tx_type = ? LIMIT 1",
		billNo, model.TxTypeDeposit); err != nil {
		if chelper.IsNoRows(err) {
			return ErrTxNotFound
		}
		return err
	}

	return s.settleDeposit(ctx, txID, "yoco", traceID)
}

// ApproveDeposit 管理员人工确认充值：按交易ID入账（回跳丢失/超时补偿）
func (s *walletService) ApproveDeposit(ctx context.Context, txID int64, operator, traceID string) error {
	if err := s.settleDeposit(ctx, txID, "admin:"+operator, traceID); err != nil {
		return err
	}
	fmt.Printf("[Wallet] 充值人工确认: tx_id=%d, operator=%s, trace_id=%s\n", txID, operator, traceID)
	return nil
}

// settleDeposit pending 充值入账（幂等：已完成直接返回）
func (s *walletService) settleDeposit(ctx context.Context, txID int64, method, traceID string) error {
	db := infmysql.SQLX()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	depTx, err := model.GetTransactionForUpdate(ctx, tx, txID)
	if err != nil {
		if chelper.IsNoRows(err) {
			return ErrTxNotFound
		}
		return err
	}
	if depTx.TxType != model.TxTypeDeposit {
		return ErrTxNotFound
	}
	// 已确认过：幂等返回
	if depTx.Status == model.TxStatusCompleted {
		return nil
	}
	if depTx.Status != model.TxStatusPending {
		return ErrTxNotPending
	}

	account, err := model.GetAccountForUpdate(ctx, tx, depTx.UserID)
	if err != nil {
		return err
	}

	beforeDec := decimal.NewFromFloat(account.Balance)
	afterDec := beforeDec.Add(decimal.NewFromFloat(depTx.Amount)).Round(2)

	if err := model.UpdateAccountBalance(ctx, tx, account.UserID, afterDec.InexactFloat64()); err != nil {
		return err
	}
	if err := model.UpdateTransactionStatus(ctx, tx, depTx.ID, model.TxStatusCompleted); err != nil {
		return err
	}
	// 回填 before/after（创建时未知余额）
	if _, err := tx.ExecContext(ctx,
		"UPDATE transactions SET before_amount = ?, after_amount = ?, updated_at = ? WHERE id = ?",
		beforeDec.InexactFloat64(), afterDec.InexactFloat64(), time.Now().UnixMilli(), depTx.ID); err != nil {
		return err
	}

	if err := model.CreateOutbox(ctx, tx, "deposit_completed", depTx.BillNo, map[string]any{
		"event":       "deposit_completed",
		"bill_no":     depTx.BillNo,
		"user_id":     account.UserID,
		"amount":      depTx.Amount,
		"method":      method,
		"payment_ref": depTx.PaymentRef,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	fmt.Printf("[Wallet] 充值入账: bill_no=%s, user_id=%d, amount=%.2f, method=%s, trace_id=%s\n",
		depTx.BillNo, account.UserID, depTx.Amount, method, traceID)
	return nil
}

// Withdraw 提现申请：立即扣款，注单进入 pending 等待人工审核
func (s *walletService) Withdraw(ctx context.Context, in WithdrawInput) (*WithdrawOutput, error) {
	amtDec, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil || amtDec.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("invalid withdrawal amount")
	}
	if amtDec.LessThan(minWithdraw) {
		return nil, ErrWithdrawTooSmall
	}

	// 进行中锁吸收瞬时重复（与投注同一套幂等键空间）
	if r := infrds.Client(); r != nil {
		lockValue := uuid.New().String()
		lockKey := infrds.IdemLockKey(in.IdempotencyKey)
		ok, _ := r.SetNX(ctx, lockKey, lockValue, idemLockTTL).Result()
		if !ok {
			return nil, ErrDuplicateInFlight
		}
		defer func() {
			script := `
				if redis.call("get", KEYS[1]) == ARGV[1] then
					return redis.call("del", KEYS[1])
				else
					return 0
				end
			`
			_, _ = r.Eval(ctx, script, []string{lockKey}, lockValue).Result()
		}()
	}

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	account, err := model.GetAccountForUpdate(ctx, tx, in.UserID)
	if err != nil {
		return nil, err
	}
	if account.Status != 1 {
		return nil, ErrAccountDisabled
	}

	billNo := generateBillNo(account.UserID)

	if err := (&model.IdempotencyKey{IdempotencyKey: in.IdempotencyKey, Purpose: "withdraw", Ref: billNo}).Insert(ctx, tx); err != nil {
		if model.IsDuplicateKeyError(err) {
			_ = tx.Rollback()
			ref, e1 := model.SelectRefByIdemKey(ctx, infmysql.SQLX(), in.IdempotencyKey)
			balance, e2 := model.GetAccountBalance(ctx, infmysql.SQLX(), in.UserID)
			if e1 == nil && e2 == nil {
				return &WithdrawOutput{
					BillNo:  ref,
					Status:  model.TxStatusPending,
					Balance: chelper.TrimDecimal(decimal.NewFromFloat(balance)),
				}, nil
			}
		}
		return nil, err
	}

	if decimal.NewFromFloat(account.Balance).Cmp(amtDec) < 0 {
		return nil, ErrInsufficientBalance
	}

	beforeDec := decimal.NewFromFloat(account.Balance)
	afterDec := beforeDec.Sub(amtDec).Round(2)

	if err := model.UpdateAccountBalance(ctx, tx, account.UserID, afterDec.InexactFloat64()); err != nil {
		return nil, err
	}

	wdTx := &model.Transaction{
		UserID:       account.UserID,
		TxType:       model.TxTypeWithdrawal,
		Amount:       amtDec.Round(2).InexactFloat64(),
		BeforeAmount: beforeDec.Round(2).InexactFloat64(),
		AfterAmount:  afterDec.InexactFloat64(),
		Status:       model.TxStatusPending,
		Description:  "withdrawal request",
		BillNo:       billNo,
		TraceID:      in.TraceID,
	}
	if err := wdTx.Insert(ctx, tx); err != nil {
		return nil, err
	}

	if err := model.CreateOutbox(ctx, tx, "withdrawal_requested", billNo, map[string]any{
		"event":   "withdrawal_requested",
		"bill_no": billNo,
		"user_id": account.UserID,
		"amount":  amtDec.Round(2).InexactFloat64(),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	fmt.Printf("[Wallet] 提现申请已受理: bill_no=%s, user_id=%d, amount=%s, trace_id=%s\n",
		billNo, in.UserID, amtDec.String(), in.TraceID)

	return &WithdrawOutput{
		BillNo:  billNo,
		Status:  model.TxStatusPending,
		Balance: chelper.TrimDecimal(afterDec),
	}, nil
}

// ApproveWithdrawal 管理员通过提现：pending -> completed
func (s *walletService) ApproveWithdrawal(ctx context.Context, txID int64, operator, traceID string) error {
	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	wdTx, err := model.GetTransactionForUpdate(ctx, tx, txID)
	if err != nil {
		if chelper.IsNoRows(err) {
			return ErrTxNotFound
		}
		return err
	}
	if wdTx.TxType != model.TxTypeWithdrawal || wdTx.Status != model.TxStatusPending {
		return ErrTxNotPending
	}

	if err := model.UpdateTransactionStatus(ctx, tx, wdTx.ID, model.TxStatusCompleted); err != nil {
		return err
	}

	if err := model.CreateOutbox(ctx, tx, "withdrawal_completed", wdTx.BillNo, map[string]any{
		"event":    "withdrawal_completed",
		"bill_no":  wdTx.BillNo,
		"user_id":  wdTx.UserID,
		"amount":   wdTx.Amount,
		"operator": operator,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	fmt.Printf("[Wallet] 提现审核通过: bill_no=%s, operator=%s, trace_id=%s\n",
		wdTx.BillNo, operator, traceID)
	return nil
}

// CancelWithdrawal 管理员驳回提现：pending -> cancelled，退回扣款
func (s *walletService) CancelWithdrawal(ctx context.Context, txID int64, operator, traceID string) error {
	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	wdTx, err := model.GetTransactionForUpdate(ctx, tx, txID)
	if err != nil {
		if chelper.IsNoRows(err) {
			return ErrTxNotFound
		}
		return err
	}
	if wdTx.TxType != model.TxTypeWithdrawal || wdTx.Status != model.TxStatusPending {
		return ErrTxNotPending
	}

	account, err := model.GetAccountForUpdate(ctx, tx, wdTx.UserID)
	if err != nil {
		return err
	}

	beforeDec := decimal.NewFromFloat(account.Balance)
	afterDec := beforeDec.Add(decimal.NewFromFloat(wdTx.Amount)).Round(2)

	if err := model.UpdateAccountBalance(ctx, tx, account.UserID, afterDec.InexactFloat64()); err != nil {
		return err
	}
	if err := model.UpdateTransactionStatus(ctx, tx, wdTx.ID, model.TxStatusCancelled); err != nil {
		return err
	}

	// 退款账变记录
	refundTx := &model.Transaction{
		UserID:       account.UserID,
		TxType:       model.TxTypeDeposit,
		Amount:       wdTx.Amount,
		BeforeAmount: beforeDec.InexactFloat64(),
		AfterAmount:  afterDec.InexactFloat64(),
		Status:       model.TxStatusCompleted,
		Description:  "withdrawal cancelled refund",
		BillNo:       wdTx.BillNo,
		TraceID:      traceID,
	}
	if err := refundTx.Insert(ctx, tx); err != nil {
		return err
	}

	if err := model.CreateOutbox(ctx, tx, "withdrawal_cancelled", wdTx.BillNo, map[string]any{
		"event":    "withdrawal_cancelled",
		"bill_no":  wdTx.BillNo,
		"user_id":  wdTx.UserID,
		"amount":   wdTx.Amount,
		"operator": operator,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	fmt.Printf("[Wallet] 提现已驳回并退款: bill_no=%s, operator=%s, trace_id=%s\n",
		wdTx.BillNo, operator, traceID)
	return nil
}

// CancelBet 管理员撤单退款：completed -> cancelled
// 仅允许撤销所属期次仍为 active 的注单，已进入结算的期次不可撤
func (s *walletService) CancelBet(ctx context.Context, txID int64, operator, traceID string) error {
	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	betTx, err := model.GetTransactionForUpdate(ctx, tx, txID)
	if err != nil {
		if chelper.IsNoRows(err) {
			return ErrTxNotFound
		}
		return err
	}
	if betTx.TxType != model.TxTypeBet || betTx.Status != model.TxStatusCompleted {
		return ErrBetNotCancellable
	}

	round, err := model.GetRoundForUpdate(ctx, tx, betTx.RoundID)
	if err != nil {
		if chelper.IsNoRows(err) {
			return ErrBetNotCancellable
		}
		return err
	}
	if round.Status != model.RoundStatusActive {
		return ErrBetNotCancellable
	}

	account, err := model.GetAccountForUpdate(ctx, tx, betTx.UserID)
	if err != nil {
		return err
	}

	beforeDec := decimal.NewFromFloat(account.Balance)
	afterDec := beforeDec.Add(decimal.NewFromFloat(betTx.Amount)).Round(2)

	if err := model.ReverseBetOnAccount(ctx, tx, account.UserID, afterDec.InexactFloat64()); err != nil {
		return err
	}
	if err := model.UpdateTransactionStatus(ctx, tx, betTx.ID, model.TxStatusCancelled); err != nil {
		return err
	}
	// 号码敞口同步回退，保持 round_bets 与有效注单一致
	if err := model.DecrementRoundBet(ctx, tx, betTx.RoundID, betTx.PickNumber, betTx.Amount); err != nil {
		return err
	}

	refundTx := &model.Transaction{
		UserID:       account.UserID,
		TxType:       model.TxTypeDeposit,
		Amount:       betTx.Amount,
		BeforeAmount: beforeDec.InexactFloat64(),
		AfterAmount:  afterDec.InexactFloat64(),
		Status:       model.TxStatusCompleted,
		Description:  "bet cancelled refund",
		RoundID:      betTx.RoundID,
		PickNumber:   betTx.PickNumber,
		BillNo:       betTx.BillNo,
		TraceID:      traceID,
	}
	if err := refundTx.Insert(ctx, tx); err != nil {
		return err
	}

	if err := model.CreateOutbox(ctx, tx, "bet_cancelled", betTx.BillNo, map[string]any{
		"event":       "bet_cancelled",
		"bill_no":     betTx.BillNo,
		"user_id":     betTx.UserID,
		"round_id":    betTx.RoundID,
		"pick_number": betTx.PickNumber,
		"amount":      betTx.Amount,
		"operator":    operator,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	fmt.Printf("[Wallet] 注单已撤销退款: bill_no=%s, round_id=%s, operator=%s, trace_id=%s\n",
		betTx.BillNo, betTx.RoundID, operator, traceID)
	return nil
}
