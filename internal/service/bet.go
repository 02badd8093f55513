package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	chelper "github.com/LeonMotaung/f2gbetting/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/config"
	infmysql "github.com/LeonMotaung/f2gbetting/internal/infra/mysql"
	infrds "github.com/LeonMotaung/f2gbetting/internal/infra/redis"
	"github.com/LeonMotaung/f2gbetting/internal/metrics"
	"github.com/LeonMotaung/f2gbetting/internal/model"

	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	decimal "github.com/shopspring/decimal"
)

// 处理投注业务逻辑

// BetInput 输入参数
// UserID 来自 JWT 认证，其余字段来自请求体
type BetInput struct {
	UserID         int64
	PickNumber     int // 投注号码 1..52
	BetAmount      string
	IdempotencyKey string
	TraceID        string
}

type BetOutput struct {
	BillNo       string  `json:"bill_no"`
	RoundID      string  `json:"round_id"`
	PickNumber   int     `json:"pick_number"`
	PayoutMult   float64 `json:"payout_mult"`   // 下单时的报价赔率（派彩按开奖时赔率计算）
	RemainAmount string  `json:"remain_amount"` // 剩余金额
}

type BetService interface {
	PlaceBet(ctx context.Context, in BetInput) (*BetOutput, error)
}

type betService struct{}

func NewBetService() BetService { return &betService{} }

const (
	// Redis 进行中锁 TTL：建议小于最短投注窗口，避免长时间阻塞重复请求
	idemLockTTL = 45 * time.Second
	// 结果缓存 TTL：用于重复请求直接返回第一次成功结果；应覆盖到大多数“短时重试”窗口
	idemResultTTL = 1 * time.Minute
)

// 默认事务超时时间，防止长事务占用资源影响并发（若上游已有 deadline，则沿用上游）
const defaultTxTimeout = 3 * time.Second

// Redis key 构造见 internal/infra/redis/keys.go
var (
	ErrDuplicateInFlight   = errors.New("duplicate request in flight")
	ErrRoundNotOpen        = errors.New("no active round to bet on")
	ErrBettingClosed       = errors.New("betting window closed")
	ErrInvalidPickNumber   = errors.New("pick number out of range")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountDisabled     = errors.New("account disabled")
)

// PlaceBet 处理下注主流程：
// 下注逻辑
func (s *betService) PlaceBet(ctx context.Context, in BetInput) (*BetOutput, error) {

	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordBet(result, start) }()

	// ========== 投注号码与金额验证 ==========
	// 1. 号码范围 1..52
	// 2. 解析金额字符串
	// 3. 验证金额为正数且不超过两位小数
	// 4. 验证最小/最大投注限制
	// ================================================

	// 运营开关：紧急停注（配置中心热更新）
	if config.GetFeatureFlag("betting_paused") {
		fmt.Printf("[Bet]  投注已暂停（运营开关）: trace_id=%s\n", in.TraceID)
		return nil, ErrBettingClosed
	}

	if in.PickNumber < 1 || in.PickNumber > model.NumberCount {
		fmt.Printf("[Bet]  号码超出范围: pick_number=%d, trace_id=%s\n", in.PickNumber, in.TraceID)
		return nil, ErrInvalidPickNumber
	}

	// 解析投注金额
	amtDec, err := decimal.NewFromString(strings.TrimSpace(in.BetAmount))
	if err != nil {
		fmt.Printf("[Bet]  无效的投注金额格式: bet_amount=%s, error=%v, trace_id=%s\n",
			in.BetAmount, err, in.TraceID)
		return nil, errors.New("invalid bet amount format")
	}

	// 验证金额必须大于0
	if amtDec.LessThanOrEqual(decimal.Zero) {
		fmt.Printf("[Bet]  投注金额必须大于0: bet_amount=%s, trace_id=%s\n",
			in.BetAmount, in.TraceID)
		return nil, errors.New("bet amount must be positive")
	}

	// 验证金额精度（最多两位小数）
	if !amtDec.Equal(amtDec.Round(2)) {
		fmt.Printf("[Bet]  投注金额超过两位小数: bet_amount=%s, trace_id=%s\n",
			in.BetAmount, in.TraceID)
		return nil, errors.New("bet amount exceeds two decimal places")
	}

	// 验证最小投注限制（默认 1，可经配置中心阈值调整）
	minBet := decimal.NewFromInt(config.GetThreshold("bet_min", 1))
	if amtDec.LessThan(minBet) {
		fmt.Printf("[Bet]  投注金额低于最小限制: bet_amount=%s, min=%s, trace_id=%s\n",
			in.BetAmount, minBet.String(), in.TraceID)
		return nil, fmt.Errorf("bet amount below minimum limit: %s", minBet.String())
	}

	// 验证最大投注限制（默认 100,000，可经配置中心阈值调整）
	maxBet := decimal.NewFromInt(config.GetThreshold("bet_max", 100000))
	if amtDec.GreaterThan(maxBet) {
		fmt.Printf("[Bet]  投注金额超过最大限制: bet_amount=%s, max=%s, trace_id=%s\n",
			in.BetAmount, maxBet.String(), in.TraceID)
		return nil, fmt.Errorf("bet amount exceeds maximum limit: %s", maxBet.String())
	}

	// 打印接收到的投注请求
	fmt.Printf("[Bet]  收到投注请求: user_id=%d, pick_number=%d, amount=%s, idem_key=%s, trace_id=%s\n",
		in.UserID, in.PickNumber, in.BetAmount, in.IdempotencyKey, in.TraceID)

	// Redis 快路径：若已有结果缓存，直接返回
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
			var out BetOutput
			if json.Unmarshal(bs, &out) == nil {
				fmt.Printf("[Bet]  Redis 缓存命中: idem_key=%s, bill_no=%s, trace_id=%s\n",
					in.IdempotencyKey, out.BillNo, in.TraceID)
				return &out, nil
			}
		}
		// ========== 分布式锁实现==========
		// 1. 生成唯一锁值（UUID）防止误删其他请求的锁
		// 2. 使用 SetNX 获取锁
		// 3. 使用 Lua 脚本原子释放（仅当锁值匹配时删除）
		// ================================================

		// 生成唯一锁值，防止误删其他请求的锁
		lockValue := uuid.New().String()
		lockKey := infrds.IdemLockKey(in.IdempotencyKey)

		// 进行中锁，吸收瞬时重复
		ok, _ := r.SetNX(ctx, lockKey, lockValue, idemLockTTL).Result()
		if !ok {
			// 检查是否有缓存的结果
			if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
				var out BetOutput
				if json.Unmarshal(bs, &out) == nil {
					fmt.Printf("[Bet] Redis 缓存命中（重复请求）: idem_key=%s, bill_no=%s, trace_id=%s\n",
						in.IdempotencyKey, out.BillNo, in.TraceID)
					return &out, nil
				}
			}
			fmt.Printf("[Bet]  重复请求进行中: idem_key=%s, trace_id=%s\n",
				in.IdempotencyKey, in.TraceID)
			return nil, ErrDuplicateInFlight
		}

		// 使用 Lua 脚本原子释放锁（仅当锁值匹配时删除）
		defer func() {
			script := `
				if redis.call("get", KEYS[1]) == ARGV[1] then
					return redis.call("del", KEYS[1])
				else
					return 0
				end
			`
			result, err := r.Eval(ctx, script, []string{lockKey}, lockValue).Result()
			if err != nil {
				fmt.Printf("[Bet] 释放分布式锁失败: idem_key=%s, error=%v, trace_id=%s\n",
					in.IdempotencyKey, err, in.TraceID)
			} else if result == int64(0) {
				fmt.Printf("[Bet] 分布式锁已被其他请求释放或过期: idem_key=%s, trace_id=%s\n",
					in.IdempotencyKey, in.TraceID)
			}
		}()
	}

	// 开启 MySQL 事务（带默认超时，防止长事务影响并发）。
	// 若上游 ctx 已设置 deadline，则沿用；否则使用默认 defaultTxTimeout。
	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		fmt.Printf("[Bet] 开启事务失败: error=%v, trace_id=%s\n", err, in.TraceID)
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 锁定用户账户
	account, err := model.GetAccountForUpdate(txCtx, tx, in.UserID)
	if err != nil {
		fmt.Printf("[Bet] 锁定账户失败: error=%v, user_id=%d, trace_id=%s\n",
			err, in.UserID, in.TraceID)
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	// 校验用户状态
	if account.Status != 1 {
		fmt.Printf("[Bet]  账户状态异常: user_id=%d, status=%d, trace_id=%s\n",
			account.UserID, account.Status, in.TraceID)
		return nil, ErrAccountDisabled
	}

	// 获取当前 active 期次并锁定
	round, err := model.GetActiveRoundForUpdate(txCtx, tx)
	if err != nil {
		if chelper.IsNoRows(err) {
			fmt.Printf("[Bet]  当前无可投注期次: trace_id=%s\n", in.TraceID)
			return nil, ErrRoundNotOpen
		}
		fmt.Printf("[Bet]  查询期次失败: error=%v, trace_id=%s\n", err, in.TraceID)
		return nil, fmt.Errorf("failed to get active round: %w", err)
	}

	// 验证投注窗口：到达截止时间后不再接受投注（调度器将接管开奖）
	now := time.Now().UnixMilli()
	if now >= round.EndTime {
		fmt.Printf("[Bet] 投注已截止: now=%d, end_time=%d, round_id=%s, trace_id=%s\n",
			now, round.EndTime, round.RoundID, in.TraceID)
		return nil, ErrBettingClosed
	}

	// 读取号码当前赔率作为本单报价写入注单（展示用；实际派彩取开奖时赔率）
	stat, err := model.GetNumberStatForUpdate(txCtx, tx, in.PickNumber)
	if err != nil {
		fmt.Printf("[Bet]  查询号码赔率失败: error=%v, pick_number=%d, trace_id=%s\n",
			err, in.PickNumber, in.TraceID)
		return nil, fmt.Errorf("failed to get number stat: %w", err)
	}
	quotedMult := stat.PayoutMultiplier

	// 生成订单号（使用可读格式）
	billNo := generateBillNo(account.UserID)

	// 幂等：先占幂等键，ref 记录 bill_no
	if err := (&model.IdempotencyKey{IdempotencyKey: in.IdempotencyKey, Purpose: "bet", Ref: billNo}).Insert(ctx, tx); err != nil {
		// 若幂等冲突：尝试返回上次结果
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			fmt.Printf("[Bet]  幂等键冲突，尝试返回上次结果: idem_key=%s, trace_id=%s\n",
				in.IdempotencyKey, in.TraceID)
			_ = tx.Rollback()
			// Redis 先查
			if r := infrds.Client(); r != nil {
				if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
					var out BetOutput
					if json.Unmarshal(bs, &out) == nil {
						fmt.Printf("[Bet]  从 Redis 返回上次结果: bill_no=%s, trace_id=%s\n",
							out.BillNo, in.TraceID)
						return &out, nil
					}
				}
			}
			// DB 回源：根据幂等键查 bill_no，再查用户余额
			ref, e1 := model.SelectRefByIdemKey(txCtx, infmysql.SQLX(), in.IdempotencyKey)
			if e1 == nil && ref != "" {
				balance, e2 := model.GetAccountBalance(txCtx, infmysql.SQLX(), in.UserID)
				if e2 == nil {
					fmt.Printf("[Bet]  从数据库返回上次结果: bill_no=%s, trace_id=%s\n",
						ref, in.TraceID)
					return &BetOutput{
						BillNo:       ref,
						RoundID:      round.RoundID,
						PickNumber:   in.PickNumber,
						RemainAmount: chelper.TrimDecimal(decimal.NewFromFloat(balance)),
					}, nil
				}
			}
		}
		fmt.Printf("[Bet]  插入幂等键失败: error=%v, idem_key=%s, trace_id=%s\n",
			err, in.IdempotencyKey, in.TraceID)
		return nil, fmt.Errorf("idempotency conflict or insert failed: %w", err)
	}

	// 校验余额（decimal 比较）
	if decimal.NewFromFloat(account.Balance).Cmp(amtDec) < 0 {
		return nil, ErrInsufficientBalance
	}

	beforeDec := decimal.NewFromFloat(account.Balance)
	afterDec := beforeDec.Sub(amtDec)

	// 扣款并累计投注笔数（两位小数）
	if err := model.ApplyBetToAccount(txCtx, tx, account.UserID, afterDec.Round(2).InexactFloat64()); err != nil {
		return nil, err
	}

	// 写注单行（tx_type=bet, status=completed，携带 round_id/pick_number/报价赔率）
	betTx := &model.Transaction{
		UserID:       account.UserID,
		TxType:       model.TxTypeBet,
		Amount:       amtDec.Round(2).InexactFloat64(),
		BeforeAmount: beforeDec.Round(2).InexactFloat64(),
		AfterAmount:  afterDec.Round(2).InexactFloat64(),
		Status:       model.TxStatusCompleted,
		Description:  fmt.Sprintf("bet on number %d", in.PickNumber),
		RoundID:      round.RoundID,
		PickNumber:   in.PickNumber,
		PayoutMult:   quotedMult,
		BillNo:       billNo,
		TraceID:      in.TraceID,
	}
	if err := betTx.Insert(txCtx, tx); err != nil {
		fmt.Printf("[Bet]  写入注单失败: error=%v, bill_no=%s, trace_id=%s\n",
			err, billNo, in.TraceID)
		return nil, err
	}

	// 累加期次号码投注汇总（ON DUPLICATE KEY UPDATE 原子累加）
	if err := model.IncrementRoundBet(txCtx, tx, round.RoundID, in.PickNumber, amtDec.Round(2).InexactFloat64()); err != nil {
		fmt.Printf("[Bet]  累加号码汇总失败: error=%v, round_id=%s, trace_id=%s\n",
			err, round.RoundID, in.TraceID)
		return nil, err
	}

	// 投注需求压降：赔率按金额线性下调（GREATEST 钳制在下限之上）
	perUnit, floor := demandParams()
	drop := amtDec.InexactFloat64() * perUnit
	if err := model.ApplyBetPressure(txCtx, tx, in.PickNumber, drop, floor); err != nil {
		fmt.Printf("[Bet]  赔率压降失败: error=%v, pick_number=%d, trace_id=%s\n",
			err, in.PickNumber, in.TraceID)
		return nil, err
	}

	// Outbox 消息（异步）
	payload := map[string]any{
		"event":       "bet_placed",
		"bill_no":     billNo,
		"user_id":     account.UserID,
		"round_id":    round.RoundID,
		"pick_number": in.PickNumber,
		"amount":      amtDec.Round(2).InexactFloat64(),
		"payout_mult": quotedMult,
	}
	if err := model.CreateOutbox(txCtx, tx, "bet_placed", billNo, payload); err != nil {
		fmt.Printf("[Bet]  写入 Outbox 失败: error=%v, bill_no=%s, trace_id=%s\n",
			err, billNo, in.TraceID)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Bet]  提交事务失败: error=%v, bill_no=%s, trace_id=%s\n",
			err, billNo, in.TraceID)
		return nil, err
	}

	result = "success"
	metrics.RecordBetAmount(amtDec.InexactFloat64())
	out := &BetOutput{
		BillNo:       billNo,
		RoundID:      round.RoundID,
		PickNumber:   in.PickNumber,
		PayoutMult:   quotedMult,
		RemainAmount: chelper.TrimDecimal(afterDec),
	}

	// 写入 Redis 结果缓存，并失效赔率快照（赔率已被压降）
	if r := infrds.Client(); r != nil {
		if b, e := json.Marshal(out); e == nil {
			_ = r.Set(ctx, infrds.IdemResultKey(in.IdempotencyKey), b, idemResultTTL).Err()
		}
		_ = r.Del(ctx, infrds.KeyOddsSnapshot).Err()
	}

	return out, nil
}

// demandParams 读取投注压降参数（配置缺省时使用默认值）
func demandParams() (perUnit, floor float64) {
	perUnit, floor = 0.0005, 10
	if cfg := config.Get(); cfg != nil {
		if cfg.Odds.DemandPerUnit > 0 {
			perUnit = cfg.Odds.DemandPerUnit
		}
		if cfg.Odds.MultFloor > 0 {
			floor = cfg.Odds.MultFloor
		}
	}
	return perUnit, floor
}

// generateBillNo 生成可读的订单号
// 格式：BET{YYYYMMDD}{HHmmss}{UserID后4位}{随机3位十六进制}
// 示例：BET20260819143025100156A
// 优点：
//   - 可读：包含日期、时间、用户信息
//   - 有序：按时间排序
//   - 唯一：时间 + 用户 + 随机数保证唯一性
//   - 可追踪：可以从订单号看出下单时间和用户
func generateBillNo(userID int64) string {
	now := time.Now()
	// 日期时间部分：YYYYMMDD HHmmss
	dateTime := now.Format("20060102150405")
	// 用户ID后4位
	userSuffix := fmt.Sprintf("%04d", userID%10000)
	// 随机3位十六进制（0-FFF，4096种可能）
	randomBytes := make([]byte, 2)
	if _, err := rand.Read(randomBytes); err != nil {
		// 随机源不可用时退化为纳秒时间戳低位
		binary.BigEndian.PutUint16(randomBytes, uint16(now.UnixNano()))
	}
	randomHex := strings.ToUpper(hex.EncodeToString(randomBytes)[:3])

	return fmt.Sprintf("BET%s%s%s", dateTime, userSuffix, randomHex)
}
